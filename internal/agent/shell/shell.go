// Package shell keeps the field app usable offline. It sits between the
// browser and the server: static assets are served network-first with a
// fallback to a locally installed copy, while dynamic /api/ calls are proxied
// untouched and never cached.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"
)

// Manifest names one asset generation. Bumping the generation and
// reinstalling invalidates every previously cached asset at once.
type Manifest struct {
	Generation string   `yaml:"generation"`
	Assets     []string `yaml:"assets"`
}

var ErrEmptyManifest = errors.New("manifest names no generation or assets")

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Generation == "" || len(m.Assets) == 0 {
		return nil, ErrEmptyManifest
	}
	return &m, nil
}

// currentMarker is the file whose contents name the installed generation.
// Swapped by rename, so readers see the old generation or the new one, never
// a half-installed mix.
const currentMarker = "current"

type Interceptor struct {
	origin   string // server base URL, no trailing slash
	dir      string // root of the local asset store
	manifest *Manifest
	http     *http.Client
}

func NewInterceptor(origin, dir string, manifest *Manifest) *Interceptor {
	return &Interceptor{
		origin:   strings.TrimRight(origin, "/"),
		dir:      dir,
		manifest: manifest,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Install fetches every manifest asset into the manifest's generation
// directory, then swaps the current marker and removes prior generations.
// Any fetch failure aborts before the swap, leaving the previous generation
// fully intact.
func (i *Interceptor) Install(ctx context.Context) error {
	genDir := filepath.Join(i.dir, i.manifest.Generation)
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		return fmt.Errorf("failed to create generation dir: %w", err)
	}

	for _, asset := range i.manifest.Assets {
		if err := i.fetchAsset(ctx, genDir, asset); err != nil {
			return fmt.Errorf("failed to install %s: %w", asset, err)
		}
	}

	if err := i.swapCurrent(); err != nil {
		return err
	}
	i.pruneOldGenerations()

	log.Printf("shell: installed generation %s (%d assets)", i.manifest.Generation, len(i.manifest.Assets))
	return nil
}

func (i *Interceptor) fetchAsset(ctx context.Context, genDir, asset string) error {
	local, err := i.localPath(genDir, asset)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.origin+asset, nil)
	if err != nil {
		return err
	}
	resp, err := i.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(local), ".asset-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), local)
}

func (i *Interceptor) swapCurrent() error {
	tmp := filepath.Join(i.dir, currentMarker+".tmp")
	if err := os.WriteFile(tmp, []byte(i.manifest.Generation), 0o644); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(i.dir, currentMarker)); err != nil {
		return fmt.Errorf("failed to swap marker: %w", err)
	}
	return nil
}

func (i *Interceptor) pruneOldGenerations() {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == i.manifest.Generation {
			continue
		}
		if err := os.RemoveAll(filepath.Join(i.dir, entry.Name())); err != nil {
			log.Printf("shell: failed to remove old generation %s: %v", entry.Name(), err)
		}
	}
}

func (i *Interceptor) currentGeneration() (string, error) {
	data, err := os.ReadFile(filepath.Join(i.dir, currentMarker))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// localPath maps an asset path to its on-disk location, refusing anything
// that escapes the generation directory.
func (i *Interceptor) localPath(genDir, asset string) (string, error) {
	clean := path.Clean("/" + asset)
	if clean == "/" {
		clean = "/index.html"
	}
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("unsafe asset path %q", asset)
	}
	return filepath.Join(genDir, filepath.FromSlash(clean)), nil
}

// Handler is the browser-facing router. /api/ is a pure pass-through;
// everything else is network-first with a fallback to the installed copy.
func (i *Interceptor) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/api/*", http.HandlerFunc(i.proxyAPI))
	r.Handle("/*", http.HandlerFunc(i.serveAsset))
	return r
}

// proxyAPI forwards dynamic calls verbatim. Offline, the caller gets the
// failure; stale API responses are worse than no response.
func (i *Interceptor) proxyAPI(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, i.origin+r.URL.RequestURI(), r.Body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	req.Header = r.Header.Clone()

	resp, err := i.http.Do(req)
	if err != nil {
		http.Error(w, "server unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	copyHeader(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func (i *Interceptor) serveAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, i.origin+r.URL.Path, nil)
	if err == nil {
		resp, doErr := i.http.Do(req)
		if doErr == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				copyHeader(w.Header(), resp.Header)
				w.WriteHeader(http.StatusOK)
				io.Copy(w, resp.Body)
				return
			}
			// 404 and friends fall through to the installed copy: the server
			// may be mid-deploy and missing an asset the old shell still needs.
		}
	}

	i.serveCached(w, r)
}

func (i *Interceptor) serveCached(w http.ResponseWriter, r *http.Request) {
	gen, err := i.currentGeneration()
	if err != nil {
		http.Error(w, "offline and no shell installed", http.StatusServiceUnavailable)
		return
	}

	local, err := i.localPath(filepath.Join(i.dir, gen), r.URL.Path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(local); err != nil {
		http.Error(w, "offline and not cached", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("X-Served-From", gen)
	http.ServeFile(w, r, local)
}

func copyHeader(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
