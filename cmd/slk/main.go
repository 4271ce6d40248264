package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stagelink/internal/config"
	"stagelink/internal/db"
	"stagelink/internal/domain"
	"stagelink/internal/engine"
	"stagelink/internal/migrate"
	"stagelink/internal/notify"
	"stagelink/internal/repo"
	"stagelink/internal/server"
	"stagelink/internal/visibility"
)

var rootCmd = &cobra.Command{
	Use:   "slk",
	Short: "Stagelink CLI",
	Long: `Stagelink runs proposal negotiations between dancers and project owners.
- Workspace: the .stagelink directory holding the database; stagelink.yml configures the gateway and worker.
- Project: a production with two status axes (commercial and execution) plus a visibility flag and optional embargo date.
- Proposal: an offer from a sender to a dancer for a role; it moves pending -> negotiating -> accepted/declined/cancelled.
- Negotiation history: the append-only log of messages, counter offers, accepts, and declines.
- Settlement: a derived income/expense statement, recomputed from proposals on every read.
- Outbox worker: drains queued status syncs, notifications, and embargo auto-publishes ('slk worker').
- Event log: diary of changes, view with 'slk log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("STAGELINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("account-id", "local-user", "acting account identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("account-id", rootCmd.PersistentFlags().Lookup("account-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(proposalCmd())
	rootCmd.AddCommand(dancerCmd())
	rootCmd.AddCommand(clientCmd())
	rootCmd.AddCommand(settlementCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage workspace config",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default stagelink.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stagelink.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectVisibilityCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectSyncCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectOptions
	var clientID, pmDancerID, startDate, endDate string
	var budget int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.OwnerID = viper.GetString("account-id")
			opts.ClientID = optionalString(clientID)
			opts.PMDancerID = optionalString(pmDancerID)
			opts.StartDate = optionalString(startDate)
			opts.EndDate = optionalString(endDate)
			if cmd.Flags().Changed("budget") {
				opts.Budget = &budget
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.EnsureAccount(ctx, opts.OwnerID, "", e.NowUTC()); err != nil {
					return err
				}
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (optional)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&clientID, "client", "", "client profile id")
	cmd.Flags().StringVar(&pmDancerID, "pm-dancer", "", "project manager dancer id")
	cmd.Flags().Int64Var(&budget, "budget", 0, "budget")
	cmd.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List own projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjectsByOwner(ctx, viper.GetString("account-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Confirmation", "Progress", "Visibility"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.ConfirmationStatus, p.ProgressStatus, p.Visibility})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectVisibilityCmd() *cobra.Command {
	var vis, embargo string
	cmd := &cobra.Command{
		Use:   "visibility <id>",
		Short: "Set project visibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SetVisibility(ctx, args[0], viper.GetString("account-id"), vis, optionalString(embargo))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&vis, "set", "", "private or public")
	cmd.Flags().StringVar(&embargo, "embargo", "", "embargo date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteProject(ctx, args[0], viper.GetString("account-id"))
			})
		},
	}
	return cmd
}

func projectSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <id>",
		Short: "Reconcile project status with its proposals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.SyncProjectStatus(ctx, args[0], "respond"); err != nil {
					return err
				}
				p, err := e.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func proposalCmd() *cobra.Command {
	prop := &cobra.Command{
		Use:   "proposal",
		Short: "Manage proposals",
		Long:  "Proposals carry a role and fee from a sender to a dancer. Accept and decline are final; counter offers and messages keep the negotiation open.",
	}
	prop.AddCommand(proposalCreateCmd())
	prop.AddCommand(proposalShowCmd())
	prop.AddCommand(proposalListCmd())
	prop.AddCommand(proposalRespondCmd())
	prop.AddCommand(proposalCancelCmd())
	prop.AddCommand(proposalReadCmd())
	prop.AddCommand(proposalUnreadCmd())
	prop.AddCommand(proposalHistoryCmd())
	return prop
}

func proposalCreateCmd() *cobra.Command {
	var opts engine.ProposeOptions
	var fee int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SenderID = viper.GetString("account-id")
			if cmd.Flags().Changed("fee") {
				opts.Fee = &fee
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Propose(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.DancerID, "dancer", "", "dancer id")
	cmd.Flags().StringVar(&opts.Role, "role", "", "role")
	cmd.Flags().Int64Var(&fee, "fee", 0, "fee")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("dancer")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func proposalShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProposal(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func proposalListCmd() *cobra.Command {
	var f repo.ProposalFilters
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				f.Statuses = strings.Split(status, ",")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProposals(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Project", "Dancer", "Role", "Fee", "Status"})
				for _, p := range items {
					fee := ""
					if p.Fee != nil {
						fee = fmt.Sprintf("%d", *p.Fee)
					}
					tw.AppendRow(table.Row{p.ID, p.ProjectID, p.DancerID, p.Role, fee, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.DancerID, "dancer", "", "dancer filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter (comma separated)")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max rows")
	return cmd
}

func proposalRespondCmd() *cobra.Command {
	var opts engine.RespondOptions
	var fee int64
	cmd := &cobra.Command{
		Use:   "respond <id>",
		Short: "Respond to proposal (accept, decline, counter_offer, message)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProposalID = args[0]
			opts.ActorID = viper.GetString("account-id")
			if cmd.Flags().Changed("fee") {
				opts.Fee = &fee
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Respond(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Action, "action", "", "accept, decline, counter_offer, or message")
	cmd.Flags().StringVar(&opts.Message, "message", "", "message text")
	cmd.Flags().Int64Var(&fee, "fee", 0, "counter offer fee")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func proposalCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel proposal (sender only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Cancel(ctx, args[0], viper.GetString("account-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func proposalReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark proposal read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.MarkRead(ctx, args[0], viper.GetString("account-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func proposalUnreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unread <id>",
		Short: "Count unread negotiation entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.UnreadCount(ctx, args[0], viper.GetString("account-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"proposal_id": args[0], "unread": n})
				}
				fmt.Println(n)
				return nil
			})
		},
	}
	return cmd
}

func proposalHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Show negotiation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.History(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Actor", "Type", "Fee", "Message"})
				for _, en := range entries {
					fee := ""
					if en.Fee != nil {
						fee = fmt.Sprintf("%d", *en.Fee)
					}
					tw.AppendRow(table.Row{en.CreatedAt, en.ActorID, en.Type, fee, en.Message})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func dancerCmd() *cobra.Command {
	d := &cobra.Command{Use: "dancer", Short: "Manage dancer profiles"}
	d.AddCommand(dancerCreateCmd())
	d.AddCommand(dancerShowCmd())
	d.AddCommand(dancerCareerAddCmd())
	return d
}

func dancerCreateCmd() *cobra.Command {
	var id, name, manager string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create dancer profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			account := viper.GetString("account-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := e.NowUTC()
				if err := e.Repo.EnsureAccount(ctx, account, name, now); err != nil {
					return err
				}
				d := newDancer(id, account, optionalString(manager), name, now)
				if err := e.Repo.InsertDancer(ctx, d); err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "dancer id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "dancer name")
	cmd.Flags().StringVar(&manager, "manager", "", "manager account id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func dancerShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show dancer profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.Repo.GetDancer(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func dancerCareerAddCmd() *cobra.Command {
	var title, description, projectID string
	var fee int64
	cmd := &cobra.Command{
		Use:   "career-add <dancer-id>",
		Short: "Add career entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := viper.GetString("account-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				dancer, err := e.Repo.GetDancer(ctx, args[0])
				if err != nil {
					return err
				}
				if !dancer.OwnedBy(account) {
					return engine.ForbiddenError{ActorID: account, Action: "edit this dancer profile"}
				}
				entry := newCareerEntry(dancer.ID, title, description, optionalString(projectID), e.NowUTC())
				if cmd.Flags().Changed("fee") {
					entry.Fee = &fee
				}
				if err := e.Repo.InsertCareerEntry(ctx, entry); err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "entry title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&projectID, "project", "", "linked project id")
	cmd.Flags().Int64Var(&fee, "fee", 0, "fee")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func clientCmd() *cobra.Command {
	c := &cobra.Command{Use: "client", Short: "Manage client profiles"}
	c.AddCommand(clientCreateCmd())
	return c
}

func clientCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create client profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			account := viper.GetString("account-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := e.NowUTC()
				if err := e.Repo.EnsureAccount(ctx, account, name, now); err != nil {
					return err
				}
				c := newClientProfile(id, account, name, now)
				if err := e.Repo.InsertClientProfile(ctx, c); err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "client id (optional)")
	cmd.Flags().StringVar(&name, "name", "", "client name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func settlementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settlement <dancer-id>",
		Short: "Show derived settlement statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.Settlement(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Side", "Proposal", "Project", "Role", "Fee", "State"})
				for _, l := range st.Income {
					tw.AppendRow(table.Row{"income", l.ProposalID, l.ProjectID, l.Role, feeString(l.Fee), l.State})
				}
				for _, l := range st.Expense {
					tw.AppendRow(table.Row{"expense", l.ProposalID, l.ProjectID, l.Role, feeString(l.Fee), l.State})
				}
				tw.AppendFooter(table.Row{"", "", "", "", "pending", st.PendingTotal})
				tw.AppendFooter(table.Row{"", "", "", "", "completed", st.CompletedTotal})
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func profileCmd() *cobra.Command {
	p := &cobra.Command{Use: "profile", Short: "Public profiles"}
	p.AddCommand(profilePublicCmd())
	return p
}

func profilePublicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "public <dancer-id>",
		Short: "Show a dancer's public career profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				resolver := visibility.Resolver{Repo: e.Repo, Logger: e.Logger, Now: e.Now}
				entries, err := resolver.PublicProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Event log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var projectID, evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, projectID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("STAGELINK_JWT_SECRET"),
				AllowLegacyActorHeader: cfg.Auth.AllowLegacyActorHeader,
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyActorHeader {
				return fmt.Errorf("STAGELINK_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			worker := notify.NewWorker(e, notify.NewHTTPGateway(cfg))
			go worker.Run(cmd.Context())
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Stagelink API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func workerCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the outbox worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				worker := notify.NewWorker(e, notify.NewHTTPGateway(e.Config))
				if once {
					return worker.ProcessBatch(ctx)
				}
				worker.Run(ctx)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "process one batch and exit")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func feeString(fee *int64) string {
	if fee == nil {
		return ""
	}
	return fmt.Sprintf("%d", *fee)
}

func newDancer(id, ownerAccountID string, managerAccountID *string, name, now string) domain.Dancer {
	if id == "" {
		id = uuid.New().String()
	}
	return domain.Dancer{
		ID:               id,
		OwnerAccountID:   ownerAccountID,
		ManagerAccountID: managerAccountID,
		Name:             name,
		CreatedAt:        now,
	}
}

func newClientProfile(id, ownerAccountID, name, now string) domain.ClientProfile {
	if id == "" {
		id = uuid.New().String()
	}
	return domain.ClientProfile{
		ID:             id,
		OwnerAccountID: ownerAccountID,
		Name:           name,
		CreatedAt:      now,
	}
}

func newCareerEntry(dancerID, title, description string, projectID *string, now string) domain.CareerEntry {
	return domain.CareerEntry{
		ID:          uuid.New().String(),
		DancerID:    dancerID,
		Title:       title,
		Description: description,
		ProjectID:   projectID,
		CreatedAt:   now,
	}
}
