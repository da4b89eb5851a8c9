// Command relay-smoke pushes one canned submission through the configured
// Graph pipeline. It exists for manual verification against a real tenant or
// an endpoint override; it is not part of the service.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/storyproof/lead-relay/internal/config"
	"github.com/storyproof/lead-relay/internal/models"
	"github.com/storyproof/lead-relay/internal/providers/graph"
	"github.com/storyproof/lead-relay/internal/relay"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	client, err := graph.NewClient(cfg.Graph, cfg.Mail.SenderMailbox, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise graph client")
	}

	sub := &models.Submission{FormName: "contact"}
	sub.Data.Set("full_name", "Smoke Test")
	sub.Data.Set("email", cfg.Mail.NotifyAddress)
	sub.Data.Set("organization", "Relay Smoke")
	sub.Data.Set("phone", "5551234567")
	sub.Data.Set("message", "Manual smoke submission; safe to ignore.")
	sub.ApplyDefaults(time.Now(), cfg.Relay.DefaultSiteOrigin, cfg.Relay.DefaultFormName)

	msg := relay.BuildEmail(sub, cfg.Mail.NotifyAddress)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	raw, err := client.Send(ctx, msg)
	if err != nil {
		log.Fatal().Err(err).Msg("smoke send failed")
	}

	log.Info().Int("upstream_status", raw.Code).Str("subject", msg.Subject).Msg("smoke email dispatched")
}
