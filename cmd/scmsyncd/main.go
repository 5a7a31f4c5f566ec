// Command scmsyncd is a thin operational tool for exercising scmcore end to
// end: initialize a repository, run a function-metadata sync pass, or print
// a commit's parsed change-set tree.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kingpin/v2"

	"github.com/sitehost/scmcore/pkg/afs"
	"github.com/sitehost/scmcore/pkg/functions"
	"github.com/sitehost/scmcore/pkg/netutil"
	"github.com/sitehost/scmcore/pkg/opsclient"
	"github.com/sitehost/scmcore/pkg/sctx"
	"github.com/sitehost/scmcore/pkg/telemetry"
	"github.com/sitehost/scmcore/pkg/vcsdriver"
	"github.com/sitehost/scmcore/pkg/vcsparse"
)

func main() {
	cli := kingpin.New("scmsyncd", "Operational tool for the scmcore deployment runtime.")
	debug := cli.Flag("debug", "Run with verbose logging.").Bool()
	repoDir := cli.Flag("repo", "Working directory of the repository to operate on.").Default(".").String()
	gitExecutable := cli.Flag("git-executable", "Name of the VCS executable on PATH. If empty, the in-process libgit backend is used.").Default("git").String()
	useLibGit := cli.Flag("libgit", "Force the in-process go-git backend instead of shelling out.").Bool()

	initCmd := cli.Command("init", "Initialize a repository at --repo.")

	statusCmd := cli.Command("status", "Print parsed working-tree status for --repo.")

	logCmd := cli.Command("log", "Print parsed commit history for --repo.")
	logMaxCount := logCmd.Flag("max-count", "Maximum number of commits to show.").Default("10").Int()

	syncCmd := cli.Command("sync-triggers", "Aggregate function trigger bindings and POST them to the operations endpoint.")
	functionsRoot := syncCmd.Flag("functions-root", "Root directory containing one subdirectory per function.").Required().String()
	dataRoot := syncCmd.Flag("data-root", "Root directory for sampledata/secrets auxiliary files.").Default("/data").String()
	logRoot := syncCmd.Flag("log-root", "Root directory for per-function log directories.").Default("/logs").String()
	siteRoot := syncCmd.Flag("site-root", "Prefix stripped when deriving a VFS URI from a filesystem path.").String()
	appBaseURL := syncCmd.Flag("app-base-url", "Base URL prefixed onto derived function URIs.").Required().String()
	opsBaseURL := syncCmd.Flag("ops-base-url", "Base URL of the operations endpoint sync_triggers posts to.").Required().String()

	cmd := kingpin.MustParse(cli.Parse(os.Args[1:]))

	level := int8(0)
	if *debug {
		level = 1
	}
	logger, flush := telemetry.New("scmsyncd",
		telemetry.WithConsoleSink(os.Stderr, telemetry.WithLevel(level)),
	)
	defer flush()

	ctx := sctx.WithLogger(sctx.Background(), logger)
	defer netutil.RecoverWithExit(ctx)

	driver := buildDriver(*useLibGit, *gitExecutable)

	var err error
	switch cmd {
	case initCmd.FullCommand():
		_, err = driver.Execute(ctx, *repoDir, []string{"init"})
	case statusCmd.FullCommand():
		err = runStatus(ctx, driver, *repoDir)
	case logCmd.FullCommand():
		err = runLog(ctx, driver, *repoDir, *logMaxCount)
	case syncCmd.FullCommand():
		err = runSyncTriggers(ctx, functions.Paths{
			FunctionsRoot: *functionsRoot,
			DataRoot:      *dataRoot,
			LogRoot:       *logRoot,
			SiteRoot:      *siteRoot,
			AppBaseURL:    *appBaseURL,
		}, *opsBaseURL)
	}

	if err != nil {
		logger.Error(err, "command failed")
		os.Exit(1)
	}
}

func buildDriver(forceLibGit bool, executable string) vcsdriver.Driver {
	if forceLibGit || executable == "" {
		return vcsdriver.NewLibGitDriver()
	}
	return vcsdriver.NewExecDriver(executable)
}

func runStatus(ctx sctx.Context, driver vcsdriver.Driver, repoDir string) error {
	out, err := driver.Execute(ctx, repoDir, []string{"status", "--porcelain"})
	if err != nil {
		return err
	}
	entries, err := vcsparse.ParseStatus(out)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-10s %s\n", e.Type, e.Path)
	}
	return nil
}

func runLog(ctx sctx.Context, driver vcsdriver.Driver, repoDir string, maxCount int) error {
	out, err := driver.Execute(ctx, repoDir, []string{"log", "--max-count=" + strconv.Itoa(maxCount)})
	if err != nil {
		return err
	}
	changes, err := vcsparse.ParseLog(out)
	if err != nil {
		return err
	}
	for _, cs := range changes {
		fmt.Printf("%s %s <%s> %s\n", cs.ID, cs.AuthorName, cs.AuthorEmail, cs.Message)
	}
	return nil
}

func runSyncTriggers(ctx sctx.Context, paths functions.Paths, opsBaseURL string) error {
	client := opsclient.New(opsBaseURL, nil)
	mgr := functions.New(paths, afs.NewOS(), client)
	return mgr.SyncTriggers(ctx)
}
