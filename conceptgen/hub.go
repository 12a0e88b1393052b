package conceptgen

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// AssetStore resolves the kernel's on-disk dependencies (tokenizer.json,
// an ONNX model, schema.json, quantile_stats.json) against a local
// cache, downloading from a Hugging-Face-style resolve URL on a miss
// (SPEC_FULL.md §4.5). This is the teacher's HFHubDownload family,
// generalized from "one model repo's config/weights" to "any named
// asset a generation stream needs before it can start."
type AssetStore struct {
	repoID string
}

// NewAssetStore binds the store to one asset repo (an HF Hub repo id
// or a local directory name under CACHE_DIR).
func NewAssetStore(repoID string) *AssetStore {
	return &AssetStore{repoID: repoID}
}

// Fetch downloads filename into the local cache, returning its path.
// A cache hit skips the network entirely.
func (a *AssetStore) Fetch(filename string) (string, error) {
	cacheDir, err := assetCacheDir(a.repoID)
	if err != nil {
		return "", err
	}
	localPath := filepath.Join(cacheDir, filename)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", err
	}

	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	url := assetURL(a.repoID, filename)
	if err := headURL(url); err != nil {
		return "", fmt.Errorf("AssetStore.Fetch HEAD %s: %w", filename, err)
	}
	if err := downloadURL(url, localPath); err != nil {
		return "", fmt.Errorf("AssetStore.Fetch GET %s: %w", filename, err)
	}
	return localPath, nil
}

// EnsureFiles fetches every named file, failing if any is missing.
func (a *AssetStore) EnsureFiles(files []string) (map[string]string, error) {
	res := make(map[string]string, len(files))
	for _, name := range files {
		if name == "" {
			continue
		}
		path, err := a.Fetch(name)
		if err != nil {
			return nil, err
		}
		res[name] = path
	}
	return res, nil
}

// EnsureOptionalFiles is like EnsureFiles but silently skips files that
// 404 (used for the ONNX external-weights sidecar, which only exists
// for some exports).
func (a *AssetStore) EnsureOptionalFiles(files []string) (map[string]string, error) {
	cacheDir, err := assetCacheDir(a.repoID)
	if err != nil {
		return nil, err
	}
	res := make(map[string]string)
	for _, name := range files {
		if name == "" {
			continue
		}
		localPath := filepath.Join(cacheDir, name)
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return nil, err
		}
		if _, err := os.Stat(localPath); err == nil {
			res[name] = localPath
			continue
		}
		url := assetURL(a.repoID, name)
		status, err := headURLStatus(url)
		if err != nil {
			return nil, fmt.Errorf("HEAD %s: %w", name, err)
		}
		if status == http.StatusNotFound {
			continue
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("HEAD %s: status %d", name, status)
		}
		if err := downloadURL(url, localPath); err != nil {
			return nil, fmt.Errorf("GET %s: %w", name, err)
		}
		res[name] = localPath
	}
	return res, nil
}

func assetURL(repoID, filename string) string {
	return fmt.Sprintf("https://huggingface.co/%s/resolve/main/%s", repoID, filename)
}

func assetCacheDir(repoID string) (string, error) {
	base := os.Getenv("CACHE_DIR")
	if base == "" {
		base = filepath.Join(".", "models")
	}
	cacheDir := filepath.Join(base, "huggingface.co", repoID, "resolve", "main")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}
	return cacheDir, nil
}

func headURL(url string) error {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func headURLStatus(url string) (int, error) {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func downloadURL(url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return nil
}
