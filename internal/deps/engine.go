package deps

// EngineRequirements lists the transcoding engine binaries. ffprobe is
// optional: without it durations are unknown, progress stays indeterminate,
// and fade-out is skipped.
func EngineRequirements(ffmpeg, ffprobe string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpeg,
			Description: "Decodes, normalizes, and encodes audio",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe,
			Description: "Reads source durations for progress and fades",
			Optional:    true,
		},
	}
}
