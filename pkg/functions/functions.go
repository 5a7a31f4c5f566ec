// Package functions implements the function-metadata manager: the on-disk
// layout under a site's functions root, envelope CRUD, host configuration,
// and the sync_triggers operation that aggregates trigger bindings and
// posts them to the operations endpoint.
package functions

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/sitehost/scmcore/pkg/afs"
	"github.com/sitehost/scmcore/pkg/jsonvalue"
	"github.com/sitehost/scmcore/pkg/netutil"
	"github.com/sitehost/scmcore/pkg/opsclient"
	"github.com/sitehost/scmcore/pkg/sctx"
)

// ErrNotFound is returned when a named function, or its configuration,
// does not exist.
var ErrNotFound = errors.New("functions: not found")

const (
	functionConfigFile = "function.json"
	hostConfigFile     = "host.json"
	triggersPath       = "/operations/settriggers"
)

// Envelope is one function's identity, config document, and derived hrefs.
type Envelope struct {
	Name       string
	Config     jsonvalue.Value
	Href       string
	ScriptHref string
}

// Paths describes the on-disk layout a Manager is scoped to, per spec §4.5.
type Paths struct {
	// FunctionsRoot holds one subdirectory per function plus host.json.
	FunctionsRoot string
	// DataRoot holds functions/sampledata/<name>.dat and
	// functions/secrets/<name>.json.
	DataRoot string
	// LogRoot holds functions/function/<name>/ log directories.
	LogRoot string
	// SiteRoot is the prefix stripped when deriving a VFS URI from a
	// filesystem path.
	SiteRoot string
	// AppBaseURL prefixes derived URIs: "<AppBaseURL>/api/vfs/<relative>".
	AppBaseURL string
}

// Manager implements list/get/create-or-update/delete, host config
// read/write, and sync_triggers against Paths via a Filesystem and an
// Operations Client.
type Manager struct {
	paths  Paths
	fs     afs.Filesystem
	client *opsclient.Client
}

// New returns a Manager scoped to paths, using fs for all I/O and client
// to post sync_triggers' aggregate.
func New(paths Paths, fs afs.Filesystem, client *opsclient.Client) *Manager {
	return &Manager{paths: paths, fs: fs, client: client}
}

func (m *Manager) functionDir(name string) string {
	return path.Join(m.paths.FunctionsRoot, name)
}

func (m *Manager) configPath(name string) string {
	return path.Join(m.functionDir(name), functionConfigFile)
}

func (m *Manager) hostConfigPath() string {
	return path.Join(m.paths.FunctionsRoot, hostConfigFile)
}

// List enumerates immediate subdirectories of the functions root. A
// directory missing function.json, or whose file fails to parse, is
// silently omitted. Envelopes are returned in the Filesystem's
// directory-iteration order.
func (m *Manager) List(ctx sctx.Context) ([]Envelope, error) {
	dirs, err := m.fs.GetDirectories(m.paths.FunctionsRoot)
	if err != nil {
		return nil, fmt.Errorf("functions: list: %w", err)
	}

	var out []Envelope
	for _, dir := range dirs {
		name := path.Base(dir)
		env, err := m.readEnvelope(name)
		if err != nil {
			ctx.Logger().V(1).Info("skipping function with unreadable config", "name", name, "error", err.Error())
			continue
		}
		out = append(out, env)
	}
	return out, nil
}

// Get reads and returns name's envelope, failing with ErrNotFound when the
// config file is missing or does not parse as a JSON object.
func (m *Manager) Get(ctx sctx.Context, name string) (Envelope, error) {
	env, err := m.readEnvelope(name)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
	}
	return env, nil
}

func (m *Manager) readEnvelope(name string) (Envelope, error) {
	text, err := m.fs.ReadAllText(m.configPath(name))
	if err != nil {
		return Envelope{}, err
	}
	cfg, err := jsonvalue.Parse([]byte(text))
	if err != nil {
		return Envelope{}, err
	}
	if _, ok := cfg.Object(); !ok {
		return Envelope{}, fmt.Errorf("config is not a JSON object")
	}
	return m.buildEnvelope(name, cfg)
}

func (m *Manager) buildEnvelope(name string, cfg jsonvalue.Value) (Envelope, error) {
	dir := m.functionDir(name)
	env := Envelope{
		Name:   name,
		Config: cfg,
		Href:   m.deriveURI(dir, true),
	}

	files, err := m.fs.GetFiles(dir, "*", true)
	if err != nil {
		return Envelope{}, err
	}
	var userFiles []string
	for _, f := range files {
		if path.Base(f) != functionConfigFile {
			userFiles = append(userFiles, f)
		}
	}

	script := m.selectPrimaryScript(dir, userFiles, cfg)
	env.ScriptHref = m.deriveURI(script, script == dir)
	return env, nil
}

// deriveURI implements spec §4.5's URI derivation: strip the site-root
// prefix, normalize separators to "/", and append a trailing slash iff
// the path is a directory.
func (m *Manager) deriveURI(p string, isDir bool) string {
	rel := strings.TrimPrefix(p, m.paths.SiteRoot)
	rel = strings.TrimPrefix(filepathToSlash(rel), "/")
	uri := strings.TrimRight(m.paths.AppBaseURL, "/") + "/api/vfs/" + rel
	if isDir && !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// selectPrimaryScript implements spec §4.5's primary-script selection:
// zero files -> the function directory; one file -> that file; otherwise
// run.* (any extension), else index.js, else config.source, else the
// directory.
func (m *Manager) selectPrimaryScript(dir string, files []string, cfg jsonvalue.Value) string {
	switch len(files) {
	case 0:
		return dir
	case 1:
		return files[0]
	}

	for _, f := range files {
		base := path.Base(f)
		if strings.HasPrefix(base, "run.") {
			return f
		}
	}
	for _, f := range files {
		if path.Base(f) == "index.js" {
			return f
		}
	}
	if source, ok := cfg.Path("source"); ok {
		if s, ok := source.String(); ok {
			candidate := path.Join(dir, s)
			for _, f := range files {
				if f == candidate {
					return candidate
				}
			}
		}
	}
	return dir
}

// CreateOrUpdate ensures the function directory exists. When files (a map
// of filename to text content) is non-nil, the directory's existing
// contents are replaced with that set (expected to include function.json);
// otherwise function.json alone is written with config (an empty object if
// config is null). It returns a freshly read envelope.
func (m *Manager) CreateOrUpdate(ctx sctx.Context, name string, config jsonvalue.Value, files map[string]string) (Envelope, error) {
	dir := m.functionDir(name)
	if err := m.fs.EnsureDirectory(dir); err != nil {
		return Envelope{}, fmt.Errorf("functions: create_or_update: %w", err)
	}

	if files != nil {
		if err := m.fs.DeleteDirectoryContentsSafe(dir); err != nil {
			return Envelope{}, fmt.Errorf("functions: create_or_update: %w", err)
		}
		for filename, content := range files {
			if err := m.fs.WriteAllText(path.Join(dir, filename), content); err != nil {
				return Envelope{}, fmt.Errorf("functions: create_or_update: write %s: %w", filename, err)
			}
		}
	} else {
		body := config
		if body.IsNull() {
			body = jsonvalue.Empty()
		}
		encoded, err := body.MarshalJSON()
		if err != nil {
			return Envelope{}, fmt.Errorf("functions: create_or_update: encode config: %w", err)
		}
		if err := m.fs.WriteAllText(m.configPath(name), string(encoded)); err != nil {
			return Envelope{}, fmt.Errorf("functions: create_or_update: %w", err)
		}
	}

	return m.Get(ctx, name)
}

// Delete removes the function directory and its three auxiliary paths.
// Failure on the main directory is propagated; failures on auxiliaries are
// swallowed.
func (m *Manager) Delete(ctx sctx.Context, name string) error {
	if err := m.fs.DeleteDirectorySafe(m.functionDir(name)); err != nil {
		return fmt.Errorf("functions: delete: %w", err)
	}

	for _, aux := range m.auxiliaryPaths(name) {
		if err := m.fs.DeleteFileSafe(aux); err != nil {
			ctx.Logger().V(1).Info("ignoring auxiliary cleanup failure", "path", aux, "error", err.Error())
		}
	}
	if err := m.fs.DeleteDirectorySafe(m.logDir(name)); err != nil {
		ctx.Logger().V(1).Info("ignoring auxiliary cleanup failure", "path", m.logDir(name), "error", err.Error())
	}
	return nil
}

func (m *Manager) auxiliaryPaths(name string) []string {
	return []string{
		path.Join(m.paths.DataRoot, "functions", "sampledata", name+".dat"),
		path.Join(m.paths.DataRoot, "functions", "secrets", name+".json"),
	}
}

func (m *Manager) logDir(name string) string {
	return path.Join(m.paths.LogRoot, "functions", "function", name)
}

// GetHostConfig reads the host-level config file. An absent file reads as
// the empty object.
func (m *Manager) GetHostConfig() (jsonvalue.Value, error) {
	text, err := m.fs.ReadAllText(m.hostConfigPath())
	if err != nil {
		exists, existsErr := m.fs.Exists(m.hostConfigPath())
		if existsErr == nil && !exists {
			return jsonvalue.Empty(), nil
		}
		return jsonvalue.Null, fmt.Errorf("functions: get_host_config: %w", err)
	}
	return jsonvalue.Parse([]byte(text))
}

// PutHostConfig writes cfg as the host-level config file.
func (m *Manager) PutHostConfig(cfg jsonvalue.Value) error {
	encoded, err := cfg.MarshalJSON()
	if err != nil {
		return fmt.Errorf("functions: put_host_config: %w", err)
	}
	if err := m.fs.WriteAllText(m.hostConfigPath(), string(encoded)); err != nil {
		return fmt.Errorf("functions: put_host_config: %w", err)
	}
	return nil
}

// hasHostConfig reports whether host.json exists, the feature-enable gate
// for sync_triggers.
func (m *Manager) hasHostConfig() (bool, error) {
	return m.fs.Exists(m.hostConfigPath())
}

// SyncTriggers is the headline operation: it aggregates every enabled
// function's trigger input bindings and posts them to the operations
// client, unless host.json is absent (feature disabled) or the aggregate
// is empty.
func (m *Manager) SyncTriggers(ctx sctx.Context) error {
	present, err := m.hasHostConfig()
	if err != nil {
		return fmt.Errorf("functions: sync_triggers: %w", err)
	}
	if !present {
		return nil
	}

	envelopes, err := m.List(ctx)
	if err != nil {
		return fmt.Errorf("functions: sync_triggers: %w", err)
	}

	var aggregate []jsonvalue.Value
	for _, env := range envelopes {
		aggregate = append(aggregate, collectTriggerBindings(ctx, env)...)
	}

	if len(aggregate) == 0 {
		return nil
	}
	return m.client.Post(ctx, triggersPath, aggregate)
}

// collectTriggerBindings isolates failures to a single envelope: a panic
// while reading one function's bindings is recovered and reported (via
// netutil.Recover), that envelope contributes nothing, and the rest of
// sync_triggers proceeds.
func collectTriggerBindings(ctx sctx.Context, env Envelope) (bindings []jsonvalue.Value) {
	defer netutil.Recover(ctx)

	disabled, _ := env.Config.Path("disabled")
	if disabled.Truthy() {
		return nil
	}

	inputs, ok := env.Config.Path("bindings", "input")
	if !ok {
		return nil
	}
	arr, ok := inputs.Array()
	if !ok {
		return nil
	}

	var found []jsonvalue.Value
	for _, b := range arr {
		typ, ok := b.Field("type")
		if !ok {
			continue
		}
		s, ok := typ.String()
		if !ok {
			continue
		}
		if strings.HasSuffix(strings.ToLower(s), "trigger") {
			found = append(found, b)
		}
	}
	return found
}

