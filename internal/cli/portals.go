package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ppiankov/casecrawl/internal/portal"
)

// portalsCmd represents the portals command
var portalsCmd = &cobra.Command{
	Use:   "portals",
	Short: "List the built-in portal presets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Name", "Description", "Base URL", "Login", "List"})
		for _, p := range portal.NewRegistry().Presets() {
			cfg := p.Config()
			login := cfg.Login.Success.Kind
			if cfg.Login.Challenge.Enabled {
				login += " + captcha"
			}
			t.AppendRow(table.Row{p.Name, p.Description, cfg.BaseURL, login, cfg.List.Kind})
		}
		t.SetStyle(table.StyleRounded)
		fmt.Println(t.Render())
		fmt.Println()
		fmt.Println("Override any preset field under 'portal:' in ~/.casecrawl/config.yaml.")
	},
}

func init() {
	rootCmd.AddCommand(portalsCmd)
}
