package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alfredjeanlab/cfgregistry/internal/events"
	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// showEvent reports whether watch prints events on topic. Audit records
// duplicate the delete events and are printed only with --audit.
func showEvent(topic string, withAudit bool) bool {
	return topic != events.TopicAudit || withAudit
}

var watchCmd = &cobra.Command{
	Use:               "watch",
	Short:             "Stream registry change events from NATS",
	GroupID:           "registry",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		withAudit, _ := cmd.Flags().GetBool("audit")
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: pass --nats, set CFGREG_NATS_URL or set it on the active profile")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(events.TopicAll)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", events.TopicAll, err)
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case m, ok := <-ch:
				if !ok {
					return nil
				}
				if !showEvent(m.Topic, withAudit) {
					continue
				}
				if jsonOutput {
					fmt.Fprintf(stdout, "{\"topic\":%q,\"event\":%s}\n", m.Topic, m.Data)
					continue
				}
				fmt.Fprintln(stdout, formatEvent(m, time.Now()))
			}
		}
	},
}

// formatEvent renders one event as a single human-readable line, stamped
// with its send time or, when the publisher set none, with now.
func formatEvent(m events.Message, now time.Time) string {
	topic, data := m.Topic, m.Data
	at := m.SentAt
	if at.IsZero() {
		at = now
	}
	name := strings.TrimPrefix(topic, "cfgregistry.")
	prefix := ui.RenderMuted(at.Local().Format("15:04:05")) + " " + ui.RenderAccent(fmt.Sprintf("%-22s", name))

	var payload struct {
		Entry                *model.ConfigurationEntry        `json:"entry"`
		Subscription         *model.ConfigurationSubscription `json:"subscription"`
		SpaceID              string                           `json:"space_id"`
		DeletedEntries       int                              `json:"deleted_entries"`
		DeletedSubscriptions int                              `json:"deleted_subscriptions"`
		Action               string                           `json:"action"`
		Object               string                           `json:"object"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return prefix + " " + string(data)
	}

	switch {
	case payload.Entry != nil:
		e := payload.Entry
		desc := fmt.Sprintf("#%d %s/%s", e.ID, e.ProviderNID, e.ProviderID)
		if e.ProviderVersion != "" {
			desc += "@" + e.ProviderVersion
		}
		return prefix + " " + desc + " " + renderTarget(e.Target)
	case payload.Subscription != nil:
		s := payload.Subscription
		return prefix + fmt.Sprintf(" #%d %s app=%s resource=%s", s.ID, s.MTAID, s.AppName, s.ResourceName)
	case topic == events.TopicSpacePurged:
		return prefix + fmt.Sprintf(" space=%s entries=%d subscriptions=%d",
			payload.SpaceID, payload.DeletedEntries, payload.DeletedSubscriptions)
	case topic == events.TopicAudit:
		return prefix + fmt.Sprintf(" %s %s space=%s", payload.Action, payload.Object, payload.SpaceID)
	}
	return prefix + " " + string(data)
}

func defaultNATSURL() string {
	if s := os.Getenv("CFGREG_NATS_URL"); s != "" {
		return s
	}
	return activeProfile().NATSURL
}

func init() {
	watchCmd.Flags().String("nats", defaultNATSURL(), "NATS server URL")
	watchCmd.Flags().Bool("audit", false, "also print audit records")
}
