package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/config"
	"github.com/dmitrijs2005/scalesync/internal/models"
	"github.com/dmitrijs2005/scalesync/internal/xiaomi"
)

// newLoginCmd builds the interactive bootstrap command: it performs a full
// credential login against the source account and stores the issued session
// token in the configuration file. Routine runs then refresh that token
// without ever needing the password again.
func newLoginCmd() *cobra.Command {
	var (
		configPath string
		username   string
		model      string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the source account and store a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			store, err := config.Load(configPath)
			if err != nil {
				return err
			}

			password, err := GetPassword(out)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			defer common.WipeByteArray(password)

			sess, err := xiaomi.NewSession(username, models.SourceToken{})
			if err != nil {
				return err
			}
			tok, err := sess.InteractiveLogin(cmd.Context(), password)
			if err != nil {
				return err
			}

			user := store.Find(username)
			if user == nil {
				user = &models.User{Username: username, Model: model}
			}
			user.Token = *tok
			if err := store.AddOrReplaceUser(user); err != nil {
				return err
			}

			fmt.Fprintf(out, "Token for %s saved to %s\n", username, configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "users.json", "path to the users configuration file")
	cmd.Flags().StringVar(&username, "username", "", "source account username")
	cmd.Flags().StringVar(&model, "model", models.DefaultScaleModel, "scale device model")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}
