package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"restaurant_live/internal/auth"
	"restaurant_live/internal/gateway"
	"restaurant_live/internal/model"
	"restaurant_live/internal/tui"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Live restaurant list with a creation form",
		Long: `restaurantctl keeps a live view of the restaurant list: the full list is fetched once,
then every restaurant created anywhere is appended as it happens.

Without a subcommand the terminal view starts.

Examples:
  # Start the terminal view
  restaurantctl

  # Print the list as YAML
  restaurantctl list -o yaml

  # Add a restaurant
  restaurantctl add --name "Le Central" --description Bistro --city Lyon`,
		SilenceUsage: true,
		Annotations:  map[string]string{annotationFullView: "true"},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: a.run(runTUI),
	}
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Append logs to this file")

	root.AddCommand(
		newTUICmd(a),
		newListCmd(a),
		newAddCmd(a),
		newDeleteCmd(a),
		newWatchCmd(a),
		newTokenCmd(a),
	)
	return root
}

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Start the terminal view",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationFullView: "true"},
		RunE:        a.run(runTUI),
	}
}

func runTUI(a *app, cmd *cobra.Command, args []string) error {
	gw, err := a.gateway(cmd.Context())
	if err != nil {
		return err
	}
	st, ctl, form := a.services(gw)
	return tui.Run(cmd.Context(), ctl, form, st)
}

func newListCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every restaurant",
		Args:  cobra.NoArgs,
		RunE: a.run(func(a *app, cmd *cobra.Command, args []string) error {
			if _, err := parseFormat(format); err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			st, ctl, _ := a.services(gw)

			// the list goes through the same mount/unmount cycle as the view
			if err := ctl.Start(cmd.Context()); err != nil {
				return err
			}
			defer ctl.Stop()
			select {
			case <-ctl.Loaded():
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
			if err := ctl.LoadErr(); err != nil {
				return fmt.Errorf("failed to load restaurants: %w", err)
			}
			return printRestaurants(cmd.OutOrStdout(), format, st.Snapshot().Restaurants)
		}),
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "Output format: table|json|yaml")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	values := map[model.Field]*string{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a restaurant",
		Args:  cobra.NoArgs,
		RunE: a.run(func(a *app, cmd *cobra.Command, args []string) error {
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			_, _, form := a.services(gw)

			for _, field := range model.EditableFields {
				if err := form.OnFieldChange(string(field), *values[field]); err != nil {
					return err
				}
			}
			if err := form.Submit(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", *values[model.FieldName])
			return nil
		}),
	}
	for _, field := range model.EditableFields {
		values[field] = cmd.Flags().String(string(field), "", field.Label()+" of the restaurant")
	}
	_ = cmd.MarkFlagRequired(string(model.FieldName))
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a restaurant by id",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(a *app, cmd *cobra.Command, args []string) error {
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			_, ctl, _ := a.services(gw)
			if err := ctl.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		}),
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print restaurants as they are created, until interrupted",
		Args:  cobra.NoArgs,
		RunE: a.run(func(a *app, cmd *cobra.Command, args []string) error {
			if _, err := parseFormat(format); err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			sub, err := gw.SubscribeOnCreate(cmd.Context())
			if err != nil {
				return err
			}
			defer sub.Close()

			return watch(cmd.Context(), a.logger, sub, func(r model.Restaurant) error {
				return printRestaurant(cmd.OutOrStdout(), format, r)
			})
		}),
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "Output format: table|json|yaml")
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject  string
		username string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:         "token",
		Short:       "Issue a development token signed with auth.secret",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoAuth: "true"},
		RunE: a.run(func(a *app, cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.Secret == "" {
				return errors.New("auth.secret is not configured")
			}
			token, err := auth.IssueToken(a.cfg.Auth.Secret, subject, username, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		}),
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	cmd.Flags().StringVar(&username, "username", "", "Username claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// watch: prints every created event until the stream ends or ctx is done. Stream errors are logged.
func watch(ctx context.Context, logger zerolog.Logger, sub gateway.Subscription, emit func(model.Restaurant) error) error {
	events, errs := sub.Events(), sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Error().Err(err).Msg("created stream error")
		case ev, ok := <-events:
			if !ok {
				for _, err := range gateway.PendingErrors(errs) {
					logger.Error().Err(err).Msg("created stream error")
				}
				return nil
			}
			if err := emit(ev.Restaurant); err != nil {
				return err
			}
		}
	}
}
