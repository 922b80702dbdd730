package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/marmos91/dagpilot/internal/cli/output"
	"github.com/marmos91/dagpilot/internal/cli/timeutil"
	"github.com/marmos91/dagpilot/pkg/api"
	"github.com/marmos91/dagpilot/pkg/catalog"
	"github.com/marmos91/dagpilot/pkg/config"
	"github.com/spf13/cobra"
)

var sessionsRemote bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse recorded driving sessions",
	Long: `List and inspect sessions indexed in the session catalog.

The catalog is read directly from catalog.path. While a pilot is running it
holds the catalog open; use --remote to read through its status API instead.

Examples:
  # List sessions
  dagpilot sessions list

  # Show one session as YAML
  dagpilot sessions show 6f0c... -o yaml

  # Read from a running pilot
  dagpilot sessions list --remote`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.PersistentFlags().BoolVar(&sessionsRemote, "remote", false, "Read through the status API of a running pilot")
	sessionsCmd.PersistentFlags().StringVar(&apiHost, "api-host", "localhost", "Status API host (with --remote)")
	sessionsCmd.PersistentFlags().IntVar(&apiPort, "api-port", api.DefaultPort, "Status API port (with --remote)")
	sessionsCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

// sessionTable renders sessions as a table.
type sessionTable []*catalog.Session

func (t sessionTable) Headers() []string {
	return []string{"ID", "STARTED", "DURATION", "MODE", "PREDICTOR", "TICKS", "ITER", "ARTIFACT", "UPLOADED"}
}

func (t sessionTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		uploaded := "no"
		if s.Upload != nil {
			uploaded = "yes"
		}
		rows = append(rows, []string{
			s.ID,
			timeutil.FormatTime(s.StartedAt),
			timeutil.FormatDuration(s.Duration()),
			s.Mode,
			s.Predictor,
			strconv.FormatInt(s.Ticks, 10),
			strconv.FormatInt(s.Iterations, 10),
			s.ArtifactName,
			uploaded,
		})
	}
	return rows
}

func sessionDetails(s *catalog.Session) output.Details {
	var d output.Details
	d.Add("ID", s.ID)
	d.Add("Mode", s.Mode)
	d.Add("Predictor", s.Predictor)
	d.Add("Started", timeutil.FormatTime(s.StartedAt))
	d.Add("Ended", timeutil.FormatTime(s.EndedAt))
	d.Add("Duration", timeutil.FormatDuration(s.Duration()))
	d.Add("Ticks", strconv.FormatInt(s.Ticks, 10))
	d.Add("Iterations", strconv.FormatInt(s.Iterations, 10))
	d.Add("Frames", strconv.Itoa(s.Frames))
	d.Add("Artifact", s.ArtifactName)
	d.Add("Video", s.VideoPath)
	d.Add("Telemetry", s.TelemetryPath)
	if s.Model != "" {
		d.Add("Model", s.Model)
	}
	if s.ExitError != "" {
		d.Add("Exit error", s.ExitError)
	}
	if u := s.Upload; u != nil {
		d.Add("Bucket", u.Bucket)
		d.Add("Video key", u.VideoKey)
		d.Add("Telemetry key", u.TelemetryKey)
		d.Add("Uploaded", timeutil.FormatTime(u.UploadedAt))
	}
	return d
}

// sessionsEnvelope is the /sessions response shape.
type sessionsEnvelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error,omitempty"`
}

// withCatalog opens the local catalog for the duration of fn.
func withCatalog(fn func(ctx context.Context, store *catalog.Store) error) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if !cfg.Catalog.Enabled {
		return errors.New("session catalog is disabled (catalog.enabled)")
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("%w (is a pilot running? try --remote)", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fn(ctx, store)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	var sessions []*catalog.Session
	if sessionsRemote {
		var env sessionsEnvelope[[]*catalog.Session]
		if err := getJSON(apiURL("/sessions"), &env); err != nil {
			return err
		}
		sessions = env.Data
	} else {
		err = withCatalog(func(ctx context.Context, store *catalog.Store) error {
			sessions, err = store.List(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, sessions)
	case output.FormatYAML:
		return output.PrintYAML(out, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return nil
	}
	return output.PrintTable(out, sessionTable(sessions))
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	var sess *catalog.Session
	if sessionsRemote {
		var env sessionsEnvelope[*catalog.Session]
		if err := getJSON(apiURL("/sessions/"+args[0]), &env); err != nil {
			return err
		}
		sess = env.Data
	} else {
		err = withCatalog(func(ctx context.Context, store *catalog.Store) error {
			sess, err = store.Get(ctx, args[0])
			return err
		})
		if err != nil {
			return err
		}
	}
	if sess == nil {
		return fmt.Errorf("session %s: %w", args[0], catalog.ErrNotFound)
	}

	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, sess)
	case output.FormatYAML:
		return output.PrintYAML(out, sess)
	default:
		return output.PrintDetails(out, sessionDetails(sess))
	}
}
