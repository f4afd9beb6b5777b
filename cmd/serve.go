package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mergington/mhs/internal/api"
	"github.com/mergington/mhs/internal/llm"
	"github.com/mergington/mhs/internal/weather"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the activities API server",
	Long: `Start the HTTP server for the activities API.

Serves the activity registry and signups, the issue tracker, the AI
advisory endpoints, the Notion webhook receiver, and the weather proxy.
By default it listens on port 8000. Use --port to change it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		var llmClient *llm.Client
		if key := viper.GetString("anthropic.api_key"); key != "" {
			llmClient = llm.NewClient(key, viper.GetString("anthropic.model"))
			ui.VerboseLog("AI endpoints enabled (model %s)", viper.GetString("anthropic.model"))
		} else {
			ui.VerboseLog("No anthropic.api_key configured; AI endpoints will answer 503")
		}

		srv := api.NewServer(s, llmClient, weather.NewClient(), api.Config{
			EmailDomain:     viper.GetString("school.domain"),
			WebhookSecret:   viper.GetString("notion.webhook_secret"),
			DefaultLocation: viper.GetString("weather.default_location"),
		})

		addr := fmt.Sprintf(":%d", viper.GetInt("port"))
		ui.Info("Serving activities API at http://localhost%s", addr)
		return http.ListenAndServe(addr, srv.Router())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8000, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
