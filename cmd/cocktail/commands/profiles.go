package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/cocktail/pkg/cli"
	"github.com/haivivi/cocktail/pkg/profilestore"
	"github.com/haivivi/cocktail/pkg/speakermem"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage stored voiceprint profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		snap, err := st.Load(cmd.Context())
		if err != nil && !errors.Is(err, profilestore.ErrNoSnapshot) {
			return err
		}

		if f := format(cli.FormatTable); f != cli.FormatTable {
			return output(cmd.OutOrStdout(), snap, f)
		}
		now := time.Now()
		t := &cli.Table{Headers: []string{"ID", "NAME", "LABEL", "HEARD", "LAST", "CONFIDENCE"}}
		for _, p := range snap.Profiles {
			t.Append(
				p.ID,
				p.Name,
				p.Label,
				cli.FormatDuration(p.TotalDuration),
				cli.FormatAgo(p.LastHeard, now),
				strconv.FormatFloat(float64(p.Confidence), 'f', 3, 32),
			)
			if p.ID == snap.User {
				t.HighlightLast()
			}
		}
		return output(cmd.OutOrStdout(), t, cli.FormatTable)
	},
}

var profilesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		profiles, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range profiles {
			if p.ID == args[0] {
				return output(cmd.OutOrStdout(), p, cli.FormatYAML)
			}
		}
		return fmt.Errorf("%w: %s", speakermem.ErrProfileNotFound, args[0])
	},
}

var profilesDesignateCmd = &cobra.Command{
	Use:   "designate <id>",
	Short: "Mark a stored profile as the primary user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editSnapshot(cmd, func(mem *speakermem.Memory) error {
			if err := mem.DesignateUser(args[0]); err != nil {
				return err
			}
			cli.PrintSuccess("designated %s as user", args[0])
			return nil
		})
	},
}

var profilesUndesignateCmd = &cobra.Command{
	Use:   "undesignate",
	Short: "Remove the primary user designation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return editSnapshot(cmd, func(mem *speakermem.Memory) error {
			mem.ClearUser()
			cli.PrintSuccess("user designation cleared")
			return nil
		})
	},
}

var profilesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := st.Clear(cmd.Context()); err != nil {
			return err
		}
		cli.PrintSuccess("profiles cleared")
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesShowCmd)
	profilesCmd.AddCommand(profilesDesignateCmd)
	profilesCmd.AddCommand(profilesUndesignateCmd)
	profilesCmd.AddCommand(profilesClearCmd)
}

// editSnapshot loads the stored profiles into a memory configured like the
// pipeline, applies fn and saves the result.
func editSnapshot(cmd *cobra.Command, fn func(*speakermem.Memory) error) error {
	ctx := cmd.Context()
	st, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	mcfg := pipelineConfig.Memory
	mcfg.Dim = 0
	mem, err := speakermem.New(mcfg, speakermem.WithLogger(logger))
	if err != nil {
		return err
	}
	snap, err := st.Load(ctx)
	if err != nil {
		return err
	}
	if err := mem.Restore(snap); err != nil {
		return err
	}
	if err := fn(mem); err != nil {
		return err
	}
	return st.Save(ctx, mem.Snapshot())
}
