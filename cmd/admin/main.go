// Command admin manages groups and accounts directly against the database.
//
//	admin create-group --title Cats --slug cats --description "All about cats"
//	admin delete-group --slug cats
//	admin delete-user --username leo
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anonto42/yatube/backend/internal/events"
	"github.com/anonto42/yatube/backend/internal/models"
	"github.com/anonto42/yatube/backend/internal/repositories"
	"github.com/anonto42/yatube/backend/internal/services"
	"github.com/anonto42/yatube/backend/pkg/config"
	pkglog "github.com/anonto42/yatube/backend/pkg/log"
	"github.com/anonto42/yatube/backend/pkg/storage"
)

// app holds the services the commands run against. They are opened from
// the configuration on first use unless already set.
type app struct {
	content *services.ContentService
	users   repositories.UserRepository
}

func main() {
	if err := newRootCmd(&app{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Manage groups and accounts",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.content != nil {
				return nil
			}
			return a.open()
		},
	}
	root.AddCommand(a.createGroupCmd(), a.deleteGroupCmd(), a.deleteUserCmd())
	return root
}

func (a *app) open() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pkglog.Init(cfg.Log)

	db, err := config.OpenSQL(cfg.Database)
	if err != nil {
		return err
	}
	if err := models.Migrate(db); err != nil {
		return err
	}

	// Deleting a user removes their images too, so the media store is needed.
	media, err := storage.NewLocalStorage(cfg.Media.BasePath)
	if err != nil {
		return err
	}

	a.users = repositories.NewGormUserRepository(db)
	a.content = services.NewContentService(
		a.users,
		repositories.NewGormGroupRepository(db),
		repositories.NewGormPostRepository(db),
		repositories.NewGormCommentRepository(db),
		media, events.Nop{}, nil,
	)
	return nil
}

func (a *app) createGroupCmd() *cobra.Command {
	var req models.CreateGroupRequest
	cmd := &cobra.Command{
		Use:   "create-group",
		Short: "Create a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			group, err := a.content.CreateGroup(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created group %d (%s)\n", group.ID, group.Slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "group title")
	cmd.Flags().StringVar(&req.Slug, "slug", "", "group slug used in /group/<slug>/")
	cmd.Flags().StringVar(&req.Description, "description", "", "group description")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

func (a *app) deleteGroupCmd() *cobra.Command {
	var slug string
	cmd := &cobra.Command{
		Use:   "delete-group",
		Short: "Delete a group; its posts are kept without a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.content.DeleteGroup(cmd.Context(), slug); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted group %s\n", slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "group slug")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

func (a *app) deleteUserCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete a user with their posts, comments and follows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.users.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			if err := a.content.DeleteUser(cmd.Context(), user.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted user %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
