package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/derickschaefer/carprice/internal/config"
	"github.com/derickschaefer/carprice/internal/model"
	"github.com/derickschaefer/carprice/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage carprice configuration",
	Long:  `Read and write carprice configuration stored in config.json or config.yaml.`,
}

var configInitYAML bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config file in the current directory",
	Example: `  carprice config init
  carprice config init --yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if configInitYAML {
			path = config.DefaultYAMLFile
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Edit api_url to point at your prediction service.")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(globalFlags.APIURL)
		if err != nil {
			return err
		}
		format := cfg.Format
		if globalFlags.Format != "" {
			format = globalFlags.Format
		}
		return writeConfig(cmd.OutOrStdout(), cfg, format)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the config file",
	Example: `  carprice config set api_url http://pricing.internal:8000
  carprice config set timeout 30s`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, f, err := loadConfigFile()
		if err != nil {
			return err
		}
		key := strings.ToLower(args[0])
		if err := setConfigKey(f, key, args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, *f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitYAML, "yaml", false, "write config.yaml instead of config.json")
}

// configRows lists the resolved configuration as key/value pairs.
func configRows(cfg *config.Config) [][]string {
	src := "(not found)"
	if cfg.ConfigPath != "" {
		src = cfg.ConfigPath
	}
	timeout := "none"
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout.String()
	}
	return [][]string{
		{"api_url", cfg.APIURL},
		{"default_format", cfg.Format},
		{"timeout", timeout},
		{"rate", fmt.Sprintf("%.1f req/s", cfg.Rate)},
		{"db_path", cfg.DBPath},
		{"listen", cfg.Listen},
		{"session_ttl", cfg.SessionTTL.String()},
		{"config_file", src},
	}
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	rows := configRows(cfg)
	switch format {
	case render.FormatJSON:
		out := make(map[string]string, len(rows))
		for _, r := range rows {
			out[r[0]] = r[1]
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		out := yaml.Node{Kind: yaml.MappingNode}
		for _, r := range rows {
			out.Content = append(out.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: r[0]},
				&yaml.Node{Kind: yaml.ScalarNode, Value: r[1]},
			)
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(&out)
	case render.FormatTable, "":
		printKVTable(w, rows)
		return nil
	default:
		result := &model.Result{
			Kind:        model.KindTable,
			GeneratedAt: time.Now(),
			Command:     "config get",
			Data:        &model.Table{Headers: []string{"key", "value"}, Rows: rows},
			Stats:       model.ResultStats{Items: len(rows)},
		}
		return render.Render(w, result, format)
	}
}

// loadConfigFile reads the config file from cwd, falling back to a fresh
// template at config.json when none exists.
func loadConfigFile() (string, *config.File, error) {
	for _, name := range []string{config.DefaultConfigFile, config.DefaultYAMLFile} {
		data, err := os.ReadFile(name)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		var f config.File
		if strings.HasSuffix(name, ".json") {
			err = json.Unmarshal(data, &f)
		} else {
			err = yaml.Unmarshal(data, &f)
		}
		if err != nil {
			return "", nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		return name, &f, nil
	}
	tmpl := config.Template()
	return config.DefaultConfigFile, &tmpl, nil
}

func setConfigKey(f *config.File, key, val string) error {
	switch key {
	case "api_url":
		f.APIURL = val
	case "default_format", "format":
		if !render.ValidFormat(val) {
			return fmt.Errorf("unknown format %q (valid: %s)", val, strings.Join(render.Formats, ", "))
		}
		f.DefaultFormat = val
	case "timeout":
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("timeout must be a duration like 30s")
		}
		f.Timeout = val
	case "rate":
		r, err := strconv.ParseFloat(val, 64)
		if err != nil || r < 0 {
			return fmt.Errorf("rate must be a non-negative number")
		}
		f.Rate = r
	case "db_path":
		f.DBPath = val
	case "listen":
		f.Listen = val
	case "session_ttl":
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("session_ttl must be a duration like 30m")
		}
		f.SessionTTL = val
	default:
		return fmt.Errorf("unknown config key: %q\n\nValid keys: api_url, default_format, timeout, rate, db_path, listen, session_ttl", key)
	}
	return nil
}

// printKVTable renders a two-column key/value table using aligned columns.
func printKVTable(w io.Writer, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", r[0], padding, r[1])
	}
}
