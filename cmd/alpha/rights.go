package main

import (
	"context"

	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/service"
	"github.com/spf13/cobra"
)

func rightsCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "rights",
		Short: "Access rights administration",
	}

	command.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create the built-in rights groups and default enums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()
			return withServices(a, func(ctx context.Context, s *service.Services) error {
				if err := s.Person.EnsureRights(ctx); err != nil {
					return err
				}
				return s.DEnum.EnsureDefaults(ctx)
			})
		},
	})

	var rights []string
	grant := &cobra.Command{
		Use:   "grant <person-id>",
		Short: "Add a person to rights groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.Close()
			return withServices(a, func(ctx context.Context, s *service.Services) error {
				p, err := s.Person.AssignRights(ctx, args[0], rights...)
				if err != nil {
					return err
				}
				cmd.Printf("%s now holds %d rights groups\n", p.Username, len(p.Rights))
				return nil
			})
		},
	}
	grant.Flags().StringSliceVarP(&rights, "rights", "r", []string{"Admin"}, "rights groups to grant")
	command.AddCommand(grant)

	return command
}

func withServices(a *app, fn func(context.Context, *service.Services) error) error {
	services := service.NewServices(repository.New(a.db), a.cfg, service.Deps{}, a.log)
	return fn(context.Background(), services)
}
