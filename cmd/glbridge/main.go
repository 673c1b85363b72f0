package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swpd-platform/glbridge/internal/config"
	"github.com/swpd-platform/glbridge/internal/gitlab"
	"github.com/swpd-platform/glbridge/internal/logging"
	"github.com/swpd-platform/glbridge/internal/review"
	"github.com/swpd-platform/glbridge/internal/search"
	"github.com/swpd-platform/glbridge/internal/server"
	"github.com/swpd-platform/glbridge/internal/tools"
)

func main() {
	root := &cobra.Command{
		Use:           "glbridge",
		Short:         "GitLab bridge for AI-driven review workflows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		level, _ := cmd.Flags().GetString("log-level")
		logging.Init(level)
	}

	root.AddCommand(newSetupCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newSetupCmd() *cobra.Command {
	var (
		baseURL     string
		token       string
		projectPath string
		insecureTLS bool
		caCertPath  string
		global      bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Resolve the project identity and persist connection settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := &config.Config{}
			cfg.GitLab = config.GitLabConfig{
				BaseURL:        baseURL,
				Token:          token,
				ProjectPath:    projectPath,
				InsecureTLS:    insecureTLS,
				CACertPath:     caCertPath,
				ConnectTimeout: 10 * time.Second,
				RequestTimeout: 20 * time.Second,
				MaxRetries:     3,
				RetryDelay:     2 * time.Second,
			}

			client := gitlab.NewClient(cfg.GitLab)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			id, err := client.ResolveProjectID(ctx, projectPath)
			if err != nil {
				var nf *gitlab.NotFoundError
				if errors.As(err, &nf) {
					return err
				}
				return fmt.Errorf("could not reach %s: %w", baseURL, err)
			}

			cfg.GitLab.ProjectID = id
			cfg.GitLab.ProjectName = path.Base(projectPath)
			cfg.GitLab.CreatedAt = time.Now().UTC().Format(time.RFC3339)

			written, err := cfg.Save(global)
			if err != nil {
				return err
			}

			color.Green("Configuration saved to %s", written)
			fmt.Printf("  Host:    %s\n", cfg.GitLab.BaseURL)
			fmt.Printf("  Project: %s (id %d)\n", cfg.GitLab.ProjectPath, cfg.GitLab.ProjectID)
			fmt.Printf("  Token:   %s\n", config.MaskToken(cfg.GitLab.Token))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "GitLab base URL (e.g. https://gitlab.example.com)")
	cmd.Flags().StringVar(&token, "token", "", "personal access token with api scope")
	cmd.Flags().StringVar(&projectPath, "project", "", "full project path (group/project)")
	cmd.Flags().BoolVar(&insecureTLS, "insecure-tls", false, "skip TLS certificate verification")
	cmd.Flags().StringVar(&caCertPath, "ca-cert", "", "path to a custom CA certificate")
	cmd.Flags().BoolVar(&global, "global", false, "save to the user-global settings file")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool catalogue and review runs over HTTP",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Resolve()
			if err != nil {
				return err
			}

			client := gitlab.NewClient(cfg.GitLab)
			searcher := search.NewSearcher(client)
			dispatcher := tools.NewDispatcher(cfg, client, searcher)

			var orchestrator *review.Orchestrator
			if cfg.Review.AgentEndpoint != "" {
				taskList, err := review.LoadTasks(cfg.Review.TasksFile)
				if err != nil {
					return err
				}
				agent := review.NewAgentClient(cfg.Review.AgentEndpoint)
				orchestrator = review.NewOrchestrator(client, dispatcher, agent.Analyze, taskList)
			} else {
				logging.Warn("REVIEW_AGENT_ENDPOINT not set; /reviews is disabled")
			}

			defer logging.Sync()
			return server.New(cfg, dispatcher, orchestrator).Listen()
		},
	}
}
