package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/mergetag"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/modifier"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

type feedFile struct {
	Feeds []feedDef `yaml:"feeds"`
}

type feedDef struct {
	Name     string    `yaml:"name"`
	Criteria string    `yaml:"criteria"`
	ApplyTo  string    `yaml:"apply_to"`
	Enabled  *bool     `yaml:"enabled"`
	Steps    []stepDef `yaml:"steps"`
}

type stepDef struct {
	Type   string                    `yaml:"type"`
	Config map[string]map[string]any `yaml:"config"`
}

// parseFeedFile turns a YAML feed definition file into records, validating each feed the same way
// a run would before anything is stored.
func parseFeedFile(b []byte) ([]*types.Feed, error) {
	var ff feedFile
	if err := yaml.Unmarshal(b, &ff); err != nil {
		return nil, fmt.Errorf("parse feeds: %w", err)
	}
	if len(ff.Feeds) == 0 {
		return nil, fmt.Errorf("parse feeds: no feeds defined")
	}
	out := make([]*types.Feed, 0, len(ff.Feeds))
	for i, d := range ff.Feeds {
		if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Criteria) == "" {
			return nil, fmt.Errorf("feed %d: name and criteria are required", i)
		}
		stored := make([]feed.StoredStep, 0, len(d.Steps))
		for _, s := range d.Steps {
			stored = append(stored, feed.StoredStep{Type: s.Type, Config: s.Config})
		}
		raw, err := feed.EncodeSteps(stored...)
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", d.Name, err)
		}
		rec := &types.Feed{
			Name:     d.Name,
			Criteria: d.Criteria,
			ApplyTo:  d.ApplyTo,
			Steps:    raw,
			Enabled:  d.Enabled == nil || *d.Enabled,
		}
		f, err := feed.FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", d.Name, err)
		}
		for j, st := range f.Steps {
			if bad := unknownModifiers(st.Config.Prompt); len(bad) > 0 {
				return nil, fmt.Errorf("feed %q step %d: unknown modifier(s) %s", d.Name, j, strings.Join(bad, ", "))
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// unknownModifiers lists modifier names in prompt's tags that no modifier implements. At run time
// they are silently ignored, so an import is the place to catch typos.
func unknownModifiers(prompt string) []string {
	var bad []string
	for _, t := range mergetag.Parse(prompt) {
		for _, name := range strings.Split(t.Spec.Modifiers, ":") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" && !modifier.Known(name) {
				bad = append(bad, name)
			}
		}
	}
	return bad
}

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "Manage stored feeds",
}

var feedsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled feeds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Repos.Feed.ListEnabled(cmd.Context(), nil)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("no enabled feeds"))
			return nil
		}
		for _, rec := range list {
			fmt.Fprintf(out, "%s  %s %s\n", rec.ID, headerStyle.Render(rec.Name), mutedStyle.Render(rec.Criteria+" / "+rec.ApplyTo))
		}
		return nil
	},
}

var feedsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create feeds from a YAML definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		recs, err := parseFeedFile(b)
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Repos.Feed.Create(cmd.Context(), nil, recs); err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", okStyle.Render("created"), rec.ID, rec.Name)
		}
		return nil
	},
}

func init() {
	feedsCmd.AddCommand(feedsListCmd, feedsImportCmd)
}
