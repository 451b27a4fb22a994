package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/internal/config"
	"github.com/goliatone/go-drivalyze/internal/logging"
)

// app carries what every command needs once flags and environment are read.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer
}

type rootFlags struct {
	apiURL   string
	dataDir  string
	logLevel string
	logDev   bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zap.NewNop()}
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "drivalyze",
		Short:         "Car price estimation: catalog server and terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("api-url") {
				cfg.APIURL = flags.apiURL
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.SetDataDir(flags.dataDir)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = flags.logLevel
			}
			if cmd.Flags().Changed("log-dev") {
				cfg.LogDev = flags.logDev
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiURL, "api-url", "", "catalog and prediction service URL (env DRIVALYZE_API_URL)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory for the session store and history (env DRIVALYZE_DATA_DIR)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (env DRIVALYZE_LOG_LEVEL)")
	pf.BoolVar(&flags.logDev, "log-dev", false, "human-readable console logs")

	root.AddCommand(
		newServeCmd(a),
		newOptionsCmd(a),
		newPredictCmd(a),
		newHistoryCmd(a),
		newLoginCmd(a),
		newSignupCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newAuthorizeCmd(a),
	)
	return root
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// describe prefers the message a user would see in the form over the
// wrapped error chain.
func describe(err error) string {
	var (
		auth     *drivalyze.AuthError
		rejected *drivalyze.ValidationRejectedError
	)
	switch {
	case errors.As(err, &auth), errors.As(err, &rejected), errors.Is(err, drivalyze.ErrIncomplete):
		return drivalyze.UserMessage(err)
	default:
		return err.Error()
	}
}
