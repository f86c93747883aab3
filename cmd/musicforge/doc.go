// Package main hosts the MusicForge CLI entrypoint and command graph.
//
// The Cobra command tree covers one-shot batch runs (`run`), the folder
// watch daemon (`watch`, `status`, `stop`), and the inspection commands
// (`presets`, `history`, `probe`, `doctor`, `config`). Configuration
// resolution, socket discovery, and logger setup live here so subcommands
// only translate flags into calls on the internal packages.
//
// Keep this package lean: new behaviour belongs in internal/ first and is
// surfaced here through flags or a dedicated command.
package main
