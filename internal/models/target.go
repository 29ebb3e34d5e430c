// Package models contains the data structures used throughout dumpmate.
package models

import "time"

// Target is a configured database connection profile the tool can dump from.
type Target struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Environment string    `json:"environment"`
	Name        string    `json:"name"`
	Alias       string    `json:"alias,omitempty"`
	Host        string    `json:"host"`
	Port        int       `json:"port,omitempty"`
	Username    string    `json:"username"`
	PasswordRef string    `json:"passwordRef,omitempty"`
	Flags       []string  `json:"flags,omitempty"`
	CustomFlags []string  `json:"customFlags,omitempty"`
	Compress    bool      `json:"compress"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DisplayName returns the alias when set, otherwise the database name.
func (t Target) DisplayName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Defaults holds optional user preferences stored alongside the targets.
type Defaults struct {
	LastSelectedID   string `json:"lastSelectedId,omitempty"`
	DumpRootOverride string `json:"dumpRootOverride,omitempty"`
}

// ConfigFile is the on-disk configuration document.
type ConfigFile struct {
	Version   int       `json:"version"`
	Databases []Target  `json:"databases"`
	Defaults  *Defaults `json:"defaults,omitempty"`
}
