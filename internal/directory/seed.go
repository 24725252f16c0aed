package directory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Users  []seedUser  `yaml:"users"`
	Groups []seedGroup `yaml:"groups"`
}

type seedUser struct {
	ID          string `yaml:"id"`
	TenantID    string `yaml:"tenantId"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"displayName"`
	Disabled    bool   `yaml:"disabled"`
}

type seedGroup struct {
	ID          string   `yaml:"id"`
	TenantID    string   `yaml:"tenantId"`
	DisplayName string   `yaml:"displayName"`
	Members     []string `yaml:"members"`
	Parents     []string `yaml:"parents"`
}

// LoadSeedFile builds an in-memory directory from a YAML fixture. Used
// for development and single-node deployments without a real directory.
func LoadSeedFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse directory seed %s: %w", path, err)
	}

	m := NewMemory()
	for i, u := range seed.Users {
		if u.ID == "" || u.TenantID == "" {
			return nil, fmt.Errorf("seed user %d is missing id or tenantId", i)
		}
		m.PutUser(&User{
			ID:          u.ID,
			TenantID:    u.TenantID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			Enabled:     !u.Disabled,
		})
	}
	for i, g := range seed.Groups {
		if g.ID == "" || g.TenantID == "" {
			return nil, fmt.Errorf("seed group %d is missing id or tenantId", i)
		}
		m.PutGroup(&Group{
			ID:          g.ID,
			TenantID:    g.TenantID,
			DisplayName: g.DisplayName,
			MemberIDs:   g.Members,
			ParentIDs:   g.Parents,
		})
	}
	return m, nil
}
