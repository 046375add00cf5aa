// Command-line interface to trainlabels: checks configurations, generates and
// stores labeled samples, and serves the HTTP API.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/janelia-flyem/trainlabels/batch"
	"github.com/janelia-flyem/trainlabels/config"
	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/server"
	"github.com/janelia-flyem/trainlabels/storage"
	_ "github.com/janelia-flyem/trainlabels/storage/badger"
	"github.com/janelia-flyem/trainlabels/transform"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Log at debug level, overriding any configured level.
	runVerbose = flag.Bool("verbose", false, "")

	// Number of concurrent sample generators.  Zero uses all CPUs.
	numWorkers = flag.Int("workers", 0, "")

	// Address for http communication.  Overrides the configuration if set.
	httpAddress = flag.String("http", "", "")
)

const helpMessage = `
trainlabels builds training labels for connectomics segmentation models

Usage: trainlabels [options] <command>

      -workers    =number   Number of concurrent sample generators (default: all CPUs).
      -http       =string   Address for HTTP communication (default: [server] http_address).
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help
	check    <config.toml>
	generate <config.toml> [n=<count>] [object_id=<id>] [out=<manifest.json>]
	serve    <config.toml>
	show     <config.toml> <sample id>
	token    <config.toml> <user>
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		dvid.SetLogMode(dvid.DebugMode)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := dvid.Command(flag.Args())
	err := DoCommand(ctx, command)
	dvid.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(ctx context.Context, cmd dvid.Command) error {
	if len(cmd) == 0 {
		return fmt.Errorf("blank command")
	}

	switch cmd.Name() {
	case "about":
		fmt.Println(dvid.Versions())
		fmt.Printf("Transforms: %s\n", strings.Join(transform.CompiledTypes(), ", "))
		fmt.Printf("Storage engines: %s\n", storage.EnginesAvailable())
		return nil
	case "check":
		return DoCheck(cmd)
	case "generate":
		return DoGenerate(ctx, cmd)
	case "serve":
		return DoServe(ctx, cmd)
	case "show":
		return DoShow(ctx, cmd)
	case "token":
		return DoToken(cmd)
	default:
		return fmt.Errorf("unknown command %q; try 'trainlabels help'", cmd.Name())
	}
}

func loadConfig(cmd dvid.Command) (*config.Config, error) {
	var filename string
	cmd.CommandArgs(1, &filename)
	if filename == "" {
		if f, found := cmd.Parameter(dvid.KeyConfigFile); found {
			filename = f
		} else {
			return nil, fmt.Errorf("%s command must be followed by a configuration file", cmd.Name())
		}
	}
	c, err := config.Load(filename)
	if err != nil {
		return nil, err
	}
	c.Logging.SetLogger()
	if *runVerbose {
		dvid.SetLogMode(dvid.DebugMode)
	}
	return c, nil
}

// openStore opens the configured sample store with Kafka notifications if
// servers are configured.
func openStore(c *config.Config) (storage.SampleStore, error) {
	store, err := storage.Open(c.Store)
	if err != nil {
		return nil, err
	}
	notifier, err := c.Kafka.NewNotifier()
	if err != nil {
		store.Close()
		return nil, err
	}
	return storage.WithNotifier(store, notifier), nil
}

// DoCheck loads and validates a configuration, then prints its data and pipeline.
func DoCheck(cmd dvid.Command) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p, err := c.Pipeline()
	if err != nil {
		return err
	}
	s, err := c.Sample("check")
	if err != nil {
		return err
	}
	fmt.Printf("Configuration %s is valid.\n", c.Location())
	fmt.Printf("Data: %s, ~%s\n", s, s.MemSize())
	fmt.Printf("Pipeline: %s\n", p)
	fmt.Printf("Targets: %s\n", strings.Join(p.Targets(), ", "))
	fmt.Printf("Store: %s engine\n", c.Store.EngineName())
	return nil
}

// DoGenerate runs the configured pipeline on n samples and stores the results.
func DoGenerate(ctx context.Context, cmd dvid.Command) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	n, err := cmd.IntParameter(dvid.KeyCount, 1)
	if err != nil {
		return err
	}
	objectID, err := cmd.Uint64Parameter(dvid.KeyObjectID)
	if err != nil {
		return err
	}
	p, err := c.Pipeline()
	if err != nil {
		return err
	}
	source, err := c.SampleSource()
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := batch.Run(ctx, batch.Options{
		Count:    n,
		Workers:  *numWorkers,
		Source:   source,
		Pipeline: p,
		Params:   transform.Params{ObjectID: objectID},
		Sink:     batch.StoreSink(store),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Stored %d samples in %s (%s):\n", len(res.IDs), store, res.Elapsed)
	for _, id := range res.IDs {
		fmt.Println(id)
	}
	if out, found := cmd.Parameter(dvid.KeyOutput); found {
		m := manifest{
			Config:   c.Location(),
			Store:    store.String(),
			Pipeline: p.Types(),
			Params:   transform.Params{ObjectID: objectID}.String(),
			IDs:      res.IDs,
			Elapsed:  res.Elapsed.String(),
		}
		if err := dvid.WriteJSONFile(out, m); err != nil {
			return err
		}
		fmt.Printf("Wrote manifest to %s\n", out)
	}
	return nil
}

// manifest describes a generate run.
type manifest struct {
	Config   string   `json:"config"`
	Store    string   `json:"store"`
	Pipeline []string `json:"pipeline"`
	Params   string   `json:"params"`
	IDs      []string `json:"ids"`
	Elapsed  string   `json:"elapsed"`
}

// DoServe runs the HTTP API until interrupted.
func DoServe(ctx context.Context, cmd dvid.Command) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := server.New(c, store)
	if err != nil {
		return err
	}
	addr := *httpAddress
	if addr == "" {
		addr = c.HTTPAddress()
	}
	return s.Serve(ctx, addr)
}

// DoShow prints the keys, shapes and size of a stored sample.
func DoShow(ctx context.Context, cmd dvid.Command) error {
	var filename, id string
	cmd.CommandArgs(1, &filename, &id)
	if id == "" {
		return fmt.Errorf("show command needs a configuration file and a sample id")
	}
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := storage.Open(c.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	s, err := store.GetSample(ctx, id)
	if err != nil {
		return err
	}
	dvid.ElapsedTime(start, "Read sample %s from %s", id, store)
	fmt.Printf("Sample %s (~%s in memory)\n", s.ID, s.MemSize())
	for _, key := range s.Keys() {
		v, _ := s.Get(key)
		fmt.Printf("  %-24s %v  sum %g\n", key, v.Shape, v.Sum())
	}
	return nil
}

// DoToken prints a JWT for a user signed with the configured secret key.
func DoToken(cmd dvid.Command) error {
	var filename, user string
	cmd.CommandArgs(1, &filename, &user)
	if user == "" {
		return fmt.Errorf("token command needs a configuration file and a user name")
	}
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	token, err := server.GenerateJWT(c.Auth.SecretKey, user, c.TokenHours())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
