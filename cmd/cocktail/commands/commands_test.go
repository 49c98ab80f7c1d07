package commands

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTone(t *testing.T, seconds float64, wav bool) string {
	t.Helper()
	n := int(16000 * seconds)
	pcm := make([]byte, 0, 2*n)
	for i := range n {
		s := 0.5 * math.Sin(2*math.Pi*220*float64(i)/16000)
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(s*32767)))
	}
	data := pcm
	name := "tone.pcm"
	if wav {
		name = "tone.wav"
		data = wavFile(pcm, 16000)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func wavFile(pcm []byte, rate int) []byte {
	var b bytes.Buffer
	le := binary.LittleEndian
	b.WriteString("RIFF")
	binary.Write(&b, le, uint32(36+len(pcm)))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, le, uint32(16))
	binary.Write(&b, le, uint16(1))
	binary.Write(&b, le, uint16(1))
	binary.Write(&b, le, uint32(rate))
	binary.Write(&b, le, uint32(rate*2))
	binary.Write(&b, le, uint16(2))
	binary.Write(&b, le, uint16(16))
	b.WriteString("data")
	binary.Write(&b, le, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

func TestRunAndProfiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store := filepath.Join(t.TempDir(), "profiles")
	audio := writeTone(t, 2, false)

	out, err := execute(t, "run", "--store", store, "--frame", "500ms", "--ephemeral=false", "-o", "jsonl", audio)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d decision lines, want 4:\n%s", len(lines), out)
	}
	var rec struct {
		Offset  string `json:"offset"`
		Focused bool   `json:"focused"`
		Focus   string `json:"focus"`
		Mode    string `json:"mode"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode %q: %v", lines[0], err)
	}
	if !rec.Focused || rec.Focus == "" || rec.Mode != "focus" || rec.Offset != "0s" {
		t.Errorf("first decision = %+v", rec)
	}

	out, err = execute(t, "profiles", "list", "--store", store, "-o", "json")
	if err != nil {
		t.Fatalf("profiles list: %v", err)
	}
	var snap struct {
		Profiles []struct {
			ID string `json:"id"`
		} `json:"profiles"`
	}
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(snap.Profiles) == 0 {
		t.Fatal("run should have persisted profiles")
	}
	id := snap.Profiles[0].ID

	if _, err := execute(t, "profiles", "designate", "--store", store, id); err != nil {
		t.Fatalf("designate: %v", err)
	}
	out, err = execute(t, "profiles", "show", "--store", store, "-o", "yaml", id)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "label: user") {
		t.Errorf("designated profile should be labeled user:\n%s", out)
	}

	if _, err := execute(t, "profiles", "designate", "--store", store, "speaker:999999"); err == nil {
		t.Error("designating an unknown profile should fail")
	}

	if _, err := execute(t, "profiles", "clear", "--store", store); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err = execute(t, "profiles", "list", "--store", store, "-o", "table")
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if strings.Contains(out, "speaker:") {
		t.Errorf("list after clear should be empty:\n%s", out)
	}
}

func TestRunWAVEphemeral(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	audio := writeTone(t, 1, true)
	out, err := execute(t, "run", "--ephemeral", "--frame", "250ms", "-o", "yaml", audio)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := strings.Count(out, "focus="); n != 4 {
		t.Errorf("got %d frames, want 4:\n%s", n, out)
	}
	if _, err := os.Stat(filepath.Join(os.Getenv("HOME"), ".cocktail", "profiles")); err == nil {
		t.Error("ephemeral run should not create the profile store")
	}
}

func TestRunMetrics(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	audio := writeTone(t, 1, false)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"run", "--ephemeral", "--metrics", "--frame", "500ms", "-o", "yaml", audio})
	err := rootCmd.ExecuteContext(context.Background())
	runMetrics = false
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	text := errOut.String()
	for _, want := range []string{
		"# TYPE cocktail_frames_total counter",
		"cocktail_frames_total 2",
		"# TYPE cocktail_process_duration_seconds histogram",
		"cocktail_process_duration_seconds_count 2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q:\n%s", want, text)
		}
	}
}

func TestRunRejectsBadFrame(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	audio := writeTone(t, 0.1, false)
	if _, err := execute(t, "run", "--ephemeral", "--frame", "0s", "-o", "yaml", audio); err == nil {
		t.Error("expected error for zero frame length")
	}
	runFrame = 500e6
}

func TestConfigCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "cocktail.yaml")
	if _, err := execute(t, "config", "init", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := execute(t, "config", "init", path); err == nil {
		t.Error("config init should refuse to overwrite")
	}

	out, err := execute(t, "config", "--config", path, "-o", "yaml")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "sample_rate: 16000") || !strings.Contains(out, "kind: synthetic") {
		t.Errorf("config output:\n%s", out)
	}
	cfgFile = ""
}

func TestReadAudioRejectsStereoWAV(t *testing.T) {
	data := wavFile(make([]byte, 8), 16000)
	binary.LittleEndian.PutUint16(data[22:24], 2)
	path := filepath.Join(t.TempDir(), "stereo.wav")
	os.WriteFile(path, data, 0o644)
	if _, _, err := readAudio(path, nil); err == nil {
		t.Error("expected error for stereo wav")
	}
}

func TestReadAudioStdin(t *testing.T) {
	pcm, rate, err := readAudio("-", bytes.NewReader([]byte{1, 2, 3, 4}))
	if err != nil || rate != 0 || len(pcm) != 4 {
		t.Errorf("readAudio(-) = %v, %d, %v", pcm, rate, err)
	}
}
