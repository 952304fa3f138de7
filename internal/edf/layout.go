// Package edf decodes and encodes the fixed-width header and record layout of
// EDF recordings.
//
// The header is a 256-byte main block followed by numSignals channel blocks of
// 256 bytes each. Channel blocks are stored column-major on disk: every label,
// then every transducer type, and so on.
package edf

// Field describes one fixed-width ASCII field. Offset is the field's position
// within a single (row-major) header record.
type Field struct {
	Name   string
	Offset int
	Length int
}

// MainHeaderSize is the size in bytes of the main header block.
const MainHeaderSize = 256

// ChannelHeaderSize is the size in bytes of one channel's header fields.
const ChannelHeaderSize = 256

// SampleSize is the width of one stored sample (signed little-endian 16-bit).
const SampleSize = 2

// Main header layout, in file order.
var (
	FieldVersion         = Field{"version", 0, 8}
	FieldPatientID       = Field{"patient_id", 8, 80}
	FieldRecordingID     = Field{"recording_id", 88, 80}
	FieldStartDate       = Field{"start_date", 168, 8}
	FieldStartTime       = Field{"start_time", 176, 8}
	FieldHeaderBytes     = Field{"header_bytes", 184, 8}
	FieldReserved        = Field{"reserved", 192, 44}
	FieldNumDataRecords  = Field{"num_data_records", 236, 8}
	FieldRecordDuration  = Field{"record_duration", 244, 8}
	FieldNumSignals      = Field{"num_signals", 252, 4}
	mainHeaderFieldOrder = []Field{
		FieldVersion, FieldPatientID, FieldRecordingID, FieldStartDate, FieldStartTime,
		FieldHeaderBytes, FieldReserved, FieldNumDataRecords, FieldRecordDuration, FieldNumSignals,
	}
)

// Channel header layout. Offsets are relative to a single channel record; on
// disk each field occupies Offset*numSignals bytes into the channel block.
var (
	FieldLabel             = Field{"label", 0, 16}
	FieldTransducerType    = Field{"transducer_type", 16, 80}
	FieldPhysicalDimension = Field{"physical_dimension", 96, 8}
	FieldPhysicalMin       = Field{"physical_min", 104, 8}
	FieldPhysicalMax       = Field{"physical_max", 112, 8}
	FieldDigitalMin        = Field{"digital_min", 120, 8}
	FieldDigitalMax        = Field{"digital_max", 128, 8}
	FieldPreFiltering      = Field{"pre_filtering", 136, 80}
	FieldSamplesPerRecord  = Field{"samples_per_record", 216, 8}
	FieldChannelReserved   = Field{"reserved", 224, 32}
	channelFieldOrder      = []Field{
		FieldLabel, FieldTransducerType, FieldPhysicalDimension, FieldPhysicalMin, FieldPhysicalMax,
		FieldDigitalMin, FieldDigitalMax, FieldPreFiltering, FieldSamplesPerRecord, FieldChannelReserved,
	}
)
