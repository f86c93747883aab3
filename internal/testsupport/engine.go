package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// FakeEngine writes an executable shell script named name into dir and
// returns its path. The body runs under /bin/sh with the engine argv as $@.
func FakeEngine(t testing.TB, dir, name, body string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake engine %s: %v", path, err)
	}
	return path
}

// EncodingEngine is a fake engine body that reports progress, writes its
// last argument as the output file, and exits 0. Measurement invocations
// (those ending in "-f null -") print a loudnorm report instead.
const EncodingEngine = `last=""
for arg in "$@"; do last="$arg"; done
if [ "$last" = "-" ]; then
  cat >&2 <<'JSON'
[Parsed_loudnorm_0 @ 0x0]
{
	"input_i" : "-20.10",
	"input_tp" : "-3.20",
	"input_lra" : "5.40",
	"input_thresh" : "-30.50",
	"output_i" : "-16.00",
	"target_offset" : "0.20"
}
JSON
  exit 0
fi
echo "out_time_ms=500000"
echo "speed=10x"
echo "progress=continue"
echo "out_time_ms=1000000"
echo "progress=end"
printf 'encoded' > "$last"
exit 0`
