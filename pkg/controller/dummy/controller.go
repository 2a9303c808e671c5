package dummy

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Dummy is a profile API that only logs. Used for dry runs without a Hive account.
type Dummy struct {
	profiles map[string]int
	active   int
	sync.Mutex
}

func New(names ...string) *Dummy {
	profiles := make(map[string]int, len(names))
	for i, name := range names {
		profiles[name] = i + 1
	}
	return &Dummy{profiles: profiles}
}

func (ts *Dummy) ListProfiles(ctx context.Context) (map[string]int, error) {
	ts.Lock()
	defer ts.Unlock()
	profiles := make(map[string]int, len(ts.profiles))
	for k, v := range ts.profiles {
		profiles[k] = v
	}
	return profiles, nil
}

func (ts *Dummy) SetActiveProfile(ctx context.Context, id int) error {
	ts.Lock()
	defer ts.Unlock()
	for name, pid := range ts.profiles {
		if pid == id {
			logrus.Infof("dummy: SetActiveProfile: %s (%d)", name, id)
			ts.active = id
			return nil
		}
	}
	return fmt.Errorf("dummy: no profile with id %d", id)
}

// Active returns the id of the last set profile, 0 if none.
func (ts *Dummy) Active() int {
	ts.Lock()
	defer ts.Unlock()
	return ts.active
}
