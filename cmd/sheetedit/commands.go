package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sheetedit "github.com/ideamans/go-sheetedit"
	"github.com/ideamans/go-sheetedit/internal/config"
	"github.com/ideamans/go-sheetedit/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		var auth server.Authenticator
		switch cfg.Auth.Mode {
		case config.AuthPassword:
			auth = server.NewPasswordAuthenticator(cfg.Auth.Credentials())
		default:
			auth = server.HeaderAuthenticator{Header: cfg.Auth.Header}
		}

		srv := server.New(client, auth, server.Options{
			RequestTimeout: cfg.RequestTimeout,
			Logger:         log.StandardLogger(),
		})
		return srv.ListenAndServe(cmd.Context(), cfg.Listen)
	},
}

var worksheetsCmd = &cobra.Command{
	Use:   "worksheets",
	Short: "List the worksheets of the configured spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := client.Worksheets(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var (
	showIdentity string
	showWhere    []string
	showLimit    int
	showOffset   int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rows of one salesperson, or the list of salespeople",
	Example: `  sheetedit show
  sheetedit show --identity 김철수 --where "수수료율입력 >= 3" --limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showIdentity == "" {
			names, err := client.Identities(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}

		query, err := showQuery()
		if err != nil {
			return err
		}

		view, err := client.View(cmd.Context(), showIdentity)
		if err != nil {
			return err
		}
		view.Rows = sheetedit.ApplyQuery(view.Rows, query)
		if view.Len() == 0 {
			fmt.Printf("no rows for %s\n", showIdentity)
			return nil
		}
		return printView(view)
	},
}

func init() {
	showCmd.Flags().StringVar(&showIdentity, "identity", "", "salesperson whose rows to print")
	showCmd.Flags().StringArrayVar(&showWhere, "where", nil, `row filter such as "고객명 == A상사", "수수료율입력 between 2..4" (repeatable)`)
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "print at most this many rows (0 = all)")
	showCmd.Flags().IntVar(&showOffset, "offset", 0, "skip this many matching rows")
}

// showQuery builds the row filter from the --where, --limit and --offset flags
func showQuery() (sheetedit.Query, error) {
	query := sheetedit.Query{Limit: showLimit, Offset: showOffset}
	for _, expr := range showWhere {
		cond, err := sheetedit.ParseCondition(expr)
		if err != nil {
			return query, err
		}
		query.Conditions = append(query.Conditions, cond)
	}
	if err := sheetedit.ValidateQuery(query); err != nil {
		return query, fmt.Errorf("invalid filter: %w", err)
	}
	return query, nil
}

func printView(view *sheetedit.View) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "row\t%s\n", strings.Join(view.Columns, "\t"))
	for _, r := range view.Rows {
		fmt.Fprintf(w, "%d\t%s\n", r.Key, strings.Join(sheetedit.TextCells(r.Cells(view.Columns)), "\t"))
	}
	return w.Flush()
}
