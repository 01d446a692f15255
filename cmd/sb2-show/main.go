// Command sb2-show is the diagnostic CLI §6 "EXTERNAL INTERFACES"
// describes: it loads a session's RuleTree and prints, without
// actually running anything, what the mapping pipeline would do with
// a set of virtual paths or an exec request. It is the teacher's own
// cmd/matchlock inspection commands (cmd_get.go et al.) rebuilt around
// this module's pipeline.Session instead of matchlock's image store.
package main

import (
	"fmt"
	"os"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sb2root/sbcore/internal/logging"
	"github.com/sb2root/sbcore/pkg/execinspect"
	"github.com/sb2root/sbcore/pkg/hostfs"
	"github.com/sb2root/sbcore/pkg/pipeline"
	"github.com/sb2root/sbcore/pkg/rules"
	"github.com/sb2root/sbcore/pkg/ruletree"
	"github.com/sb2root/sbcore/pkg/session"
)

var (
	binaryName string
	modeFlag   string
	funcFlag   string
	treeFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "sb2-show [-b binary] [-m mode] [-f function] path <p>... | exec <file> <argv0> <argv...>",
	Short: "Show how the current session's RuleTree would map paths or an exec request",
	Args:  cobra.MinimumNArgs(2),
	RunE:  run,
	// Exit codes: 0 ok, 1 usage error, matching §6's CLI contract;
	// SilenceUsage (off by default in cobra) keeps a mapping error from
	// also dumping a usage banner.
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&binaryName, "binary", "b", "", "binary name presented to rule selection (CallCtx.BinaryName)")
	rootCmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "override SBOX_SESSION_MODE for this lookup")
	rootCmd.Flags().StringVarP(&funcFlag, "function", "f", "", "intercepted function name presented to rule selection (CallCtx.FuncName)")
	rootCmd.Flags().StringVar(&treeFlag, "tree", "", "RuleTree path (default $SBOX_SESSION_DIR/rule_tree.bin)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sb2-show:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := session.Load(os.Getenv)
	if modeFlag != "" {
		cfg.Mode = modeFlag
	}

	treePath := treeFlag
	if treePath == "" {
		if cfg.SessionDir == "" {
			return fmt.Errorf("one of --tree or $SBOX_SESSION_DIR is required")
		}
		treePath = cfg.SessionDir + "/rule_tree.bin"
	}

	mapped, err := ruletree.Open(treePath)
	if err != nil {
		return fmt.Errorf("open RuleTree %s: %w", treePath, err)
	}
	defer mapped.Close()

	log := logging.NewEmitter(logging.LevelNotice, logging.NullSink{})

	host := hostfs.NewRealFSProvider("/")
	sess, err := pipeline.NewSession(mapped.Reader, cfg, host, os.Getenv, log)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	colored := term.IsTerminal(int(os.Stdout.Fd()))

	switch args[0] {
	case "path":
		return showPaths(sess, args[1:], colored)
	case "exec":
		return showExec(sess, args[1:])
	default:
		return fmt.Errorf("unknown subcommand %q (want \"path\" or \"exec\")", args[0])
	}
}

func showPaths(sess *pipeline.Session, paths []string, colored bool) error {
	if len(paths) == 0 {
		return fmt.Errorf("path: at least one path argument is required")
	}
	ctx := rules.CallCtx{BinaryName: binaryName, FuncName: funcFlag, FuncClassMask: rules.FuncClassAll}

	failed := false
	for _, p := range paths {
		res, err := sess.MapPath(p, ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: error: %v\n", p, err)
			failed = true
			continue
		}
		printMapping(p, res, colored)
	}
	if failed {
		return fmt.Errorf("one or more paths failed to map")
	}
	return nil
}

func printMapping(virtual string, res pipeline.Result, colored bool) {
	arrow := "->"
	if colored {
		arrow = "\033[2m->\033[0m"
	}
	if res.NoMatch {
		fmt.Printf("%s %s %s (pass)\n", virtual, arrow, res.HostPath)
		return
	}
	fmt.Printf("%s %s %s\n", virtual, arrow, res.HostPath)
}

func showExec(sess *pipeline.Session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("exec: requires <file> <argv0> [argv...]")
	}
	file, argv := args[0], args[1:]

	req := pipeline.ExecRequest{
		File:          file,
		Argv:          argv,
		Environ:       os.Environ(),
		TargetArch:    execinspect.TargetArch{},
		DefaultPolicy: "NATIVE",
	}
	res, err := sess.Exec(req)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	fmt.Printf("mapped file: %s\n", res.File)
	fmt.Printf("argv: %s\n", shellquote.Join(res.Argv...))
	if res.Warning != "" {
		fmt.Fprintf(os.Stderr, "warning: %s\n", res.Warning)
	}
	return nil
}
