/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/
package models

import (
	"github.com/spf13/pflag"
)

// FlagStruct describes a string flag shared by several commands.
type FlagStruct struct {
	Label        string
	Short        string
	Description  string
	DefaultValue string
}

// Register declares the flag on fs and returns the created flag.
func (f FlagStruct) Register(fs *pflag.FlagSet) *pflag.Flag {
	fs.StringP(f.Label, f.Short, f.DefaultValue, f.Description)
	return fs.Lookup(f.Label)
}

// RegisterAll declares every flag of flags on fs.
func RegisterAll(fs *pflag.FlagSet, flags []FlagStruct) {
	for _, f := range flags {
		f.Register(fs)
	}
}
