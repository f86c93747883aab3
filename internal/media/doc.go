// Package media describes source audio files handed to the transcoding
// pipeline. Subpackage ffprobe wraps the probing tool.
package media
