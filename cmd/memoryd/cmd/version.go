package cmd

import (
	"github.com/spf13/cobra"

	"github.com/contextmemory/workmem/pkg/version"
)

type versionOutput struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print memoryd build information",
		RunE: func(c *cobra.Command, args []string) error {
			info := version.GetInfo()
			return writeJSON(c.OutOrStdout(), versionOutput{
				Version:   info.Version,
				Commit:    info.Commit,
				Date:      info.Date,
				GoVersion: info.GoVersion,
				OS:        info.OS,
				Arch:      info.Arch,
			})
		},
	}
}
