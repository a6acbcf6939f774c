// Package whisperx runs WhisperX locally with speaker diarization as a
// transcription backend.
//
// The local backend has no job queue: Submit runs the transcription to
// completion and returns a handle naming the JSON output, and Poll reads it
// back. This keeps the pipeline's submit/poll flow identical for the remote
// and local backends.
package whisperx
