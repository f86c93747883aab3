// Package preflight provides readiness checks for the engine binaries and
// filesystem paths MusicForge depends on.
//
// These checks run in two contexts:
//   - The watch daemon calls RunAll before starting; a failed required check
//     aborts startup.
//   - The CLI "musicforge doctor" command renders every result, including
//     optional ones such as the libfdk_aac encoder probe.
package preflight
