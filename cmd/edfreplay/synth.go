package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/banshee-data/edfreplay/internal/edf"
)

// Synthetic channels span +/-3276.8 uV at 0.1 uV per digital step.
const (
	synthAmplitude  = 1000.0
	synthResolution = 0.1
)

type synthOptions struct {
	Signals          int
	SamplesPerRecord int
	Records          int
	RecordDuration   float64
	// Slow adds one channel at half the sampling rate, which the replay
	// loop rejects.
	Slow  bool
	Start time.Time
}

func handleSynth(args []string, e env, stderr io.Writer) int {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "EDF file to write")
	signals := fs.Int("signals", 8, "Number of full-rate channels")
	samples := fs.Int("samples", 256, "Samples per record of the full-rate channels")
	records := fs.Int("records", 60, "Number of data records")
	duration := fs.Float64("duration", 1, "Record duration in seconds")
	slow := fs.Bool("slow", false, "Add a half-rate channel")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *out == "" {
		fmt.Fprintln(stderr, "synth: an output file is required (-out)")
		return 1
	}

	var buf bytes.Buffer
	opts := synthOptions{
		Signals:          *signals,
		SamplesPerRecord: *samples,
		Records:          *records,
		RecordDuration:   *duration,
		Slow:             *slow,
		Start:            e.clock.Now(),
	}
	if err := synthesize(&buf, opts); err != nil {
		fmt.Fprintf(stderr, "synth: %v\n", err)
		return 1
	}
	if err := e.fsys.WriteFile(*out, buf.Bytes(), 0644); err != nil {
		fmt.Fprintf(stderr, "synth: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "wrote %s (%d records of %gs)\n", *out, opts.Records, opts.RecordDuration)
	return 0
}

// synthesize writes a recording where channel i carries a sine of i+1 Hz,
// except the last full-rate channel which carries a one-second sawtooth.
func synthesize(w io.Writer, o synthOptions) error {
	if o.Signals < 1 || o.SamplesPerRecord < 2 || o.Records < 0 {
		return errors.New("need at least one signal, two samples per record and a non-negative record count")
	}
	if o.RecordDuration <= 0 {
		return edf.ErrInvalidRecordDuration
	}

	signals := make([]edf.SignalSpec, 0, o.Signals+1)
	for i := 0; i < o.Signals; i++ {
		label := fmt.Sprintf("SIN%d", i+1)
		if i == o.Signals-1 && o.Signals > 1 {
			label = "SAW"
		}
		signals = append(signals, synthSignal(label, o.SamplesPerRecord))
	}
	if o.Slow {
		signals = append(signals, synthSignal("SLOW", o.SamplesPerRecord/2))
	}

	hdr := edf.NewHeader(edf.MainHeader{
		PatientID:      "X X X Synthetic",
		RecordingID:    "Startdate " + strings.ToUpper(o.Start.Format("02-Jan-2006")) + " X edfreplay synth",
		StartDate:      o.Start.Format("02.01.06"),
		StartTime:      o.Start.Format("15.04.05"),
		NumDataRecords: o.Records,
		RecordDuration: o.RecordDuration,
	}, signals)
	enc, err := edf.NewEncoder(w, hdr)
	if err != nil {
		return err
	}

	samples := make([][]int16, len(signals))
	for rec := 0; rec < o.Records; rec++ {
		for ch, s := range signals {
			if samples[ch] == nil {
				samples[ch] = make([]int16, s.SamplesPerRecord)
			}
			dt := o.RecordDuration / float64(s.SamplesPerRecord)
			for i := range samples[ch] {
				t := float64(rec)*o.RecordDuration + float64(i)*dt
				samples[ch][i] = synthSample(s.Label, ch, t)
			}
		}
		if err := enc.WriteRecord(samples); err != nil {
			return err
		}
	}
	return enc.Flush()
}

func synthSignal(label string, spr int) edf.SignalSpec {
	return edf.SignalSpec{
		Label:             label,
		TransducerType:    "synthetic",
		PhysicalDimension: "uV",
		PhysicalMin:       math.MinInt16 * synthResolution,
		PhysicalMax:       math.MaxInt16 * synthResolution,
		DigitalMin:        math.MinInt16,
		DigitalMax:        math.MaxInt16,
		SamplesPerRecord:  spr,
	}
}

// synthSample returns the digital value of channel ch at t seconds.
func synthSample(label string, ch int, t float64) int16 {
	var v float64
	switch label {
	case "SAW":
		_, frac := math.Modf(t)
		v = synthAmplitude * (2*frac - 1)
	case "SLOW":
		v = synthAmplitude / 2 * math.Sin(2*math.Pi*0.25*t)
	default:
		v = synthAmplitude * math.Sin(2*math.Pi*float64(ch+1)*t)
	}
	return int16(math.Round(v / synthResolution))
}
