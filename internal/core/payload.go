package core

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PayloadInstaller installs or upgrades the NapCat bundle inside the host
// application's tree and wires up the load hook.
type PayloadInstaller struct {
	runner  Runner
	cfg     *Config
	patcher *Patcher
	events  Events
}

// NewPayloadInstaller creates a PayloadInstaller.
func NewPayloadInstaller(runner Runner, cfg *Config, patcher *Patcher, events Events) *PayloadInstaller {
	return &PayloadInstaller{runner: runner, cfg: cfg, patcher: patcher, events: events}
}

// Install replaces the payload tree with the contents of the downloaded
// archive and re-establishes the integration hook. The payload's config
// subdirectory survives the replacement so an upgrade never loses user
// settings.
func (pi *PayloadInstaller) Install(ctx context.Context, archivePath string) error {
	dir := pi.cfg.PayloadDir()

	if err := clearExcept(dir, PreservedDirName); err != nil {
		return fmt.Errorf("clearing payload directory: %w", err)
	}

	if err := extractZip(archivePath, dir); err != nil {
		return err
	}

	// The host app runs under arbitrary user accounts, so the whole tree
	// must stay world-writable after every replacement.
	for _, target := range []string{dir, pi.cfg.QQRoot} {
		if _, err := pi.runner.Run(ctx, "chmod", "-R", "777", target); err != nil {
			return fmt.Errorf("opening permissions on %s: %w", target, err)
		}
	}

	if err := pi.writeHook(); err != nil {
		return err
	}

	return pi.patcher.Patch(pi.cfg.AppManifestPath(), map[string]any{
		"main": "./loadNapCat.js",
	})
}

// PatchPacketServer writes the configured packet server address into the
// payload's config file and into every per-user copy found under the
// configured home globs. Runs on every invocation when the payload is
// present, so a changed setting propagates without a reinstall.
func (pi *PayloadInstaller) PatchPacketServer(addr string) error {
	edits := map[string]any{"packetServer": addr}

	applied, err := pi.patcher.PatchExisting(pi.cfg.PayloadConfigPath(), edits)
	if err != nil {
		return err
	}
	if applied {
		pi.events.info("packet server set in " + pi.cfg.PayloadConfigPath())
	}

	rel := filepath.Join(".config", "QQ", "NapCat", "config", "napcat.json")
	patched, err := pi.patcher.PatchPerUser(pi.cfg.UserHomeGlobs, rel, edits)
	if err != nil {
		return err
	}
	for _, p := range patched {
		pi.events.info("packet server set in " + p)
	}
	return nil
}

// writeHook drops the loader script next to the app manifest. The hook is a
// one-line import of the payload entry point.
func (pi *PayloadInstaller) writeHook() error {
	entry := filepath.ToSlash(pi.cfg.PayloadEntryPath())
	content := fmt.Sprintf("(async () => {await import(\"file:///%s\");})();\n", strings.TrimPrefix(entry, "/"))
	if err := os.WriteFile(pi.cfg.HookPath(), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing load hook: %w", err)
	}
	return nil
}

// clearExcept removes every entry of dir except the named subdirectory.
// A missing dir is created empty.
func clearExcept(dir, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return err
	}
	for _, entry := range entries {
		if entry.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// extractZip unpacks archive into destDir, refusing entries that would
// escape the destination.
func extractZip(archive, destDir string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", archive, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		target := filepath.Join(destDir, file.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractZipFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("reading archive entry %s: %w", file.Name, err)
	}
	defer src.Close()

	// Archives with zero-mode headers would otherwise yield unreadable
	// files, so floor the permissions.
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, file.Mode()|0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("extracting %s: %w", file.Name, err)
	}
	return nil
}
