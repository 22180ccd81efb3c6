package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planline/internal/api"
	"planline/internal/config"
	"planline/internal/domain"
	"planline/internal/learnlog"
	"planline/internal/listview"
	"planline/internal/server"
	"planline/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Planline CLI",
	Long: `Planline is a terminal client for the GCD ticket service.
It lists and filters tickets, creates new ones, and edits each ticket's
resolution plan (reorder, retag, assign, due dates, blockers) before
committing the plan back to the server. Run 'pl ui' for the interactive
interface or use the subcommands for scripting. Local state (the
learning log and optimistic creations) lives in .planline/ inside the
workspace.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().String("api-key", "", "API key (overrides key_env)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("base-url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("api-key", rootCmd.PersistentFlags().Lookup("api-key"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(regenerateCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(candidatesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(pendingCmd())
	rootCmd.AddCommand(uiCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var baseURL string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default planline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(baseURL)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://127.0.0.1:8787/gcd", "API base URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")
	return cmd
}

func listCmd() *cobra.Command {
	var q listview.Query
	var page int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *api.Client, cfg *config.Config) error {
				tickets, err := c.ListTickets(ctx)
				if err != nil {
					return err
				}
				if store, err := openStore(); err == nil {
					defer store.Close()
					tickets, err = store.Reconcile(ctx, tickets)
					if err != nil {
						return err
					}
				}
				filtered := listview.Filter(tickets, q)
				p := listview.Paginate(len(filtered), page, cfg.PageSize())
				rows := filtered[p.Start:p.End]
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Status", "Priority", "Type", "Client", "Description"})
				for _, t := range rows {
					tw.AppendRow(table.Row{t.TicketID, t.IssueStatus, t.IssuePriority,
						t.TicketType, t.ClientName, t.UserDescription})
				}
				tw.Render()
				if p.Total > 0 {
					fmt.Printf("Showing %d-%d of %d (page %d/%d)\n",
						p.ShowingStart, p.ShowingEnd, p.Total, p.Current, p.Last)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "substring filter across all fields")
	cmd.Flags().StringVar(&q.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&q.Client, "client", "", "client filter")
	cmd.Flags().StringVar(&q.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&q.Type, "type", "", "ticket type filter")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func createCmd() *cobra.Command {
	var ticketType, client, priority, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.ValidTicketType(ticketType) {
				return fmt.Errorf("invalid --type %q (one of %s)", ticketType,
					strings.Join(domain.TicketTypes, ", "))
			}
			if strings.TrimSpace(client) == "" {
				return fmt.Errorf("--client is required")
			}
			validPriority := false
			for _, p := range domain.Priorities {
				validPriority = validPriority || p == priority
			}
			if !validPriority {
				return fmt.Errorf("invalid --priority %q (one of %s)", priority,
					strings.Join(domain.Priorities, ", "))
			}
			desc := strings.TrimSpace(description)
			if desc == "" {
				return fmt.Errorf("--description is required")
			}
			if runes := []rune(desc); len(runes) > 80 {
				desc = string(runes[:80])
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			t := domain.Ticket{
				TicketID:        domain.NewTicketID(time.Now(), rng),
				TicketType:      ticketType,
				ClientName:      strings.TrimSpace(client),
				IssuePriority:   priority,
				IssueStatus:     domain.StatusDraft,
				UserDescription: desc,
			}
			return withClient(func(ctx context.Context, c *api.Client, cfg *config.Config) error {
				store, storeErr := openStore()
				if storeErr == nil {
					defer store.Close()
					if err := store.AddPending(ctx, t); err != nil {
						return err
					}
				}
				res, err := c.CreateTicket(ctx, t)
				if err != nil {
					if storeErr == nil {
						_ = store.MarkFailed(ctx, t.TicketID)
					}
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"ticket_id": t.TicketID, "response": res})
				}
				fmt.Printf("Created %s: %s\n", t.TicketID, res.Message)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ticketType, "type", "", "ticket type")
	cmd.Flags().StringVar(&client, "client", "", "client name")
	cmd.Flags().StringVar(&priority, "priority", "Medium", "priority (Low, Medium, High)")
	cmd.Flags().StringVar(&description, "description", "", "issue context (trimmed to 80 chars)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Show a ticket and its resolution plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *api.Client, cfg *config.Config) error {
				t, err := c.TicketMetadata(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("%s  %s  %s\n%s / %s\n%s\n\n", t.TicketID, t.IssueStatus,
					t.IssuePriority, t.TicketType, t.ClientName, t.UserDescription)
				printFlow(t.ResolutionSteps.FlowStruct)
				return nil
			})
		},
	}
	return cmd
}

func regenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate <ticket-id>",
		Short: "Ask the server for a fresh resolution plan",
		Long: `Fetches the ticket, requests a regenerated plan, and prints it.
The result is not committed; use the interactive UI to review and
proceed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *api.Client, cfg *config.Config) error {
				t, err := c.TicketMetadata(ctx, args[0])
				if err != nil {
					return err
				}
				flow, err := c.RegenerateSteps(ctx, t)
				if err != nil {
					if errors.Is(err, api.ErrMalformedPlan) {
						return fmt.Errorf("server returned no plan for %s", t.TicketID)
					}
					return err
				}
				if viper.GetBool("json") {
					return printJSON(flow)
				}
				printFlow(flow)
				return nil
			})
		},
	}
	return cmd
}

func tagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List role tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *api.Client, cfg *config.Config) error {
				tags, err := c.SpecializationList(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tags)
				}
				for _, tag := range tags {
					fmt.Println(tag)
				}
				return nil
			})
		},
	}
	return cmd
}

func candidatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates <tag>",
		Short: "List assignee candidates for a role tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *api.Client, cfg *config.Config) error {
				names, err := c.SpecializationClients(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(names)
				}
				if len(names) == 0 {
					fmt.Printf("no candidates for %s\n", args[0])
					return nil
				}
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Learning log",
		Long:  "Every plan edit is recorded locally; tail the log to see what changed and when.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var ticketID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent plan edit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			events, err := store.Events(cmd.Context(), ticketID, n)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(events)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Time", "Kind", "Ticket", "Payload"})
			for _, e := range events {
				payload, _ := json.Marshal(e.Payload)
				tw.AppendRow(table.Row{e.TS, e.Kind, e.TicketID, string(payload)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&ticketID, "ticket", "", "filter by ticket id")
	return cmd
}

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List optimistic creations not yet confirmed by the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			items, err := store.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "State", "Client", "Created"})
			for _, p := range items {
				tw.AppendRow(table.Row{p.Ticket.TicketID, p.State, p.Ticket.ClientName, p.CreatedAt})
			}
			tw.Render()
			return nil
		},
	}
	return cmd
}

func uiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui [ticket-id]",
		Short: "Start the interactive ticket UI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *api.Client, cfg *config.Config) error {
				store, err := openStore()
				if err != nil {
					return err
				}
				defer store.Close()
				m := tui.New(c, store, cfg.PageSize())
				if len(args) == 1 {
					m = m.WithTicket(args[0])
				}
				_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
				return err
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath, apiKey string
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local GCD-compatible dev server",
		Long: `Serves the six ticket endpoints backed by the workspace database,
for development and demos without the real backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg, err := config.LoadOptional(viper.GetString("workspace")); err != nil {
				return err
			} else if cfg != nil {
				if addr == "" {
					addr = cfg.Server.Listen
				}
				if apiKey == "" {
					apiKey = cfg.Server.APIKey
				}
			}
			if addr == "" {
				addr = "127.0.0.1:8787"
			}
			if apiKey == "" {
				return fmt.Errorf("an api key is required; set --key or server.api_key in planline.yml")
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			tickets, err := server.NewStore(store.DB)
			if err != nil {
				return err
			}
			if seed {
				if err := server.Seed(cmd.Context(), tickets, time.Now); err != nil {
					return err
				}
			}
			handler, err := server.New(server.Config{Store: tickets, APIKey: apiKey, BasePath: basePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving ticket API on http://%s%s\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config or 127.0.0.1:8787)")
	cmd.Flags().StringVar(&basePath, "base-path", "/gcd", "API base path")
	cmd.Flags().StringVar(&apiKey, "key", "", "API key clients must present")
	cmd.Flags().BoolVar(&seed, "seed", false, "seed demo tickets")
	return cmd
}

// --- helpers ---

func withClient(fn func(context.Context, *api.Client, *config.Config) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	if u := viper.GetString("base-url"); u != "" {
		cfg.API.BaseURL = u
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	key := viper.GetString("api-key")
	if key == "" {
		key = cfg.APIKey()
	}
	if key == "" {
		return fmt.Errorf("no API key; set --api-key or export the variable named by api.key_env")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, api.New(cfg.API.BaseURL, key), cfg)
}

func openStore() (*learnlog.Store, error) {
	return learnlog.Open(viper.GetString("workspace"))
}

func printFlow(flow []domain.FlowEntry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Step", "Parties", "Due", "Status", "Blocked"})
	for i, f := range flow {
		blocked := ""
		if f.Blocker {
			blocked = "yes"
		}
		tw.AppendRow(table.Row{i + 1, f.WorkflowName, strings.Join(f.PartiesInvolved, ", "),
			domain.MillisToDate(f.DueDate), f.Status, blocked})
	}
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
