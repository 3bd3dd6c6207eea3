package cmd

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kifreason/kifreason/internal/config"
	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/reasoner"
	"github.com/kifreason/kifreason/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the reasoning daemon's websocket server and load any configured rules/facts file",
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.Int("port", 8080, "websocket listen port")
	flags.Int("kb-size", 10000, "per-KB capacity before eviction")
	flags.String("rules", "", "file of rules/facts to load at startup")
	flags.String("llm-url", "", "base URL of the note-interpretation LLM service")
	flags.String("llm-model", "", "model name to request from the LLM service")
	flags.Bool("broadcast-input", false, "broadcast assert-input messages to websocket clients")
	flags.Int("max-derivation-depth", 6, "forward/universal-instantiation derivation depth budget")
	flags.Int("max-backward-depth", 8, "backward-chaining recursion depth budget")
	flags.Int("max-derived-weight", 150, "derived term weight budget")
	flags.Float64("derived-priority-decay", 0.95, "priority decay applied to every derived assertion")
	flags.Int("kb-warn-pct", 90, "KB fill percentage for the capacity warning log (stored in the config only; the KB warns at a fixed 90%)")
	flags.Int("kb-halt-pct", 98, "KB fill percentage for the critical capacity log (stored in the config only; the KB logs at a fixed 98%)")
}

func runServe(c *cobra.Command, args []string) error {
	log := logrus.StandardLogger()

	file, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}
	cfg := config.Resolve(c.Flags(), file)

	bus := eventbus.New(0, log)
	defer bus.Shutdown()

	reasoner.NewEngine(cfg, bus, log)

	if cfg.RulesFile != "" {
		if err := transport.LoadFile(cfg.RulesFile, bus, log); err != nil {
			log.WithError(err).WithField("file", cfg.RulesFile).Error("kifreasond: failed to load rules file")
		}
	}

	server := transport.NewServer(bus, log, cfg.BroadcastInput)
	http.Handle("/ws", server.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("kifreasond: listening")
	return http.ListenAndServe(addr, nil)
}
