package models

// Stage labels a candidate's position in the admission pipeline.
type Stage string

const (
	StageInquiry     Stage = "INQUIRY"
	StageApplication Stage = "APPLICATION"
	StageInterview   Stage = "INTERVIEW"
	StageOffered     Stage = "OFFERED"
	StageEnrolled    Stage = "ENROLLED"
)

// stageOrder fixes the linear progression of the pipeline. Transitions move
// one position at a time; only enrollment finalization jumps to the terminal
// stage.
var stageOrder = []Stage{
	StageInquiry,
	StageApplication,
	StageInterview,
	StageOffered,
	StageEnrolled,
}

// Stages returns a copy of the ordered stage sequence.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// StageIndex returns the position of the stage in the pipeline, or -1 when
// the value is not a defined stage.
func StageIndex(s Stage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// IsValidStage reports whether s is one of the defined pipeline stages.
func IsValidStage(s Stage) bool {
	return StageIndex(s) >= 0
}

// IsInitialStage reports whether s is the intake stage.
func IsInitialStage(s Stage) bool {
	return s == stageOrder[0]
}

// IsTerminalStage reports whether s is the enrolled stage.
func IsTerminalStage(s Stage) bool {
	return s == stageOrder[len(stageOrder)-1]
}

// InitialStage returns the stage assigned at intake.
func InitialStage() Stage {
	return stageOrder[0]
}

// TerminalStage returns the final pipeline stage.
func TerminalStage() Stage {
	return stageOrder[len(stageOrder)-1]
}

// NextStage returns the stage following s. ok is false at the terminal stage
// or for an unknown value.
func NextStage(s Stage) (Stage, bool) {
	idx := StageIndex(s)
	if idx < 0 || idx >= len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[idx+1], true
}

// PrevStage returns the stage preceding s. ok is false at the initial stage
// or for an unknown value.
func PrevStage(s Stage) (Stage, bool) {
	idx := StageIndex(s)
	if idx <= 0 {
		return "", false
	}
	return stageOrder[idx-1], true
}
