package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// mustFlag reads a flag registered in the command's init(). The serve, booth
// and compose commands only look up flags they declare themselves, so a
// lookup error means the flag name and its registration drifted apart.
func mustFlag[T any](cmd *cobra.Command, name string, get func(*pflag.FlagSet, string) (T, error)) T {
	val, err := get(cmd.Flags(), name)
	if err != nil {
		panic(fmt.Sprintf("photobooth: --%s on %q: %v", name, cmd.Name(), err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(cmd, name, (*pflag.FlagSet).GetBool)
}

// mustGetInt is used for --port.
func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(cmd, name, (*pflag.FlagSet).GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(cmd, name, (*pflag.FlagSet).GetString)
}

// mustGetStringSlice is used for the booth command's --pick list.
func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	return mustFlag(cmd, name, (*pflag.FlagSet).GetStringSlice)
}
