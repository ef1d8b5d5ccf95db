package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shelf-taught/internal/app"
	"shelf-taught/internal/core/database"
	"shelf-taught/internal/core/storage"
	"shelf-taught/internal/domain"
	"shelf-taught/internal/repo"
	"shelf-taught/internal/seed"
	"shelf-taught/internal/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repo.AutoMigrate(db.WithContext(cmd.Context())); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample grade levels, subjects and curricula (idempotent)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repo.AutoMigrate(db.WithContext(cmd.Context())); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			rep, err := seed.Run(cmd.Context(), db, a.Curricula, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d grade levels, %d subjects, %d curricula\n",
				rep.GradeLevels, rep.Subjects, rep.Curricula)
			return nil
		})
	},
}

var adminIn service.RegisterInput

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account, or promote an existing account to admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			u, created, err := a.Auth.EnsureAdmin(cmd.Context(), adminIn)
			if err != nil {
				return err
			}
			verb := "promoted"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s: %s (%s)\n", verb, u.Email, u.ID)
			return nil
		})
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminIn.Email, "email", "", "admin email")
	f.StringVar(&adminIn.Password, "password", "", "password (only used when creating)")
	f.StringVar(&adminIn.FirstName, "first-name", "Site", "first name")
	f.StringVar(&adminIn.LastName, "last-name", "Admin", "last name")
	_ = createAdminCmd.MarkFlagRequired("email")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check database, cache and storage connectivity and print table counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()

		lat, err := database.Ping(ctx, db)
		if err != nil {
			fmt.Fprintf(w, "database\tDOWN\t%v\n", err)
			return fmt.Errorf("database unreachable")
		}
		fmt.Fprintf(w, "database\tok\t%s (%s)\n", cfg.DB.Driver, lat)

		return withApp(ctx, func(a *app.App) error {
			if err := a.Cache.Ping(ctx); err != nil {
				fmt.Fprintf(w, "cache\tdisabled\t%v\n", err)
			} else {
				fmt.Fprintf(w, "cache\tok\t%s\n", cfg.Redis.Addr)
			}
			if _, ok := a.Images.(storage.Unconfigured); ok {
				fmt.Fprintf(w, "storage\tdisabled\tset GCS_BUCKET to enable uploads\n")
			} else {
				fmt.Fprintf(w, "storage\tok\t%s\n", cfg.Storage.Bucket)
			}
			for _, m := range []any{&domain.User{}, &domain.GradeLevel{}, &domain.Subject{}, &domain.Curriculum{}, &domain.CurriculumSubject{}, &domain.SavedCurriculum{}} {
				var n int64
				if err := db.WithContext(ctx).Model(m).Count(&n).Error; err != nil {
					fmt.Fprintf(w, "table\t%T\terror: %v\n", m, err)
					continue
				}
				fmt.Fprintf(w, "table\t%s\t%d rows\n", tableName(m), n)
			}
			return nil
		})
	},
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute every overall rating and fill in missing slugs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			n, err := a.Curricula.Recompute(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d curricula\n", n)
			return nil
		})
	},
}

func tableName(m any) string {
	if t, ok := m.(interface{ TableName() string }); ok {
		return t.TableName()
	}
	return fmt.Sprintf("%T", m)
}
