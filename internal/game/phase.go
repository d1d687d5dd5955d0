package game

// Phase is the stage of the round lifecycle the session is currently in.
type Phase string

const (
	PhaseLobby           Phase = "LOBBY"
	PhasePromptSelection Phase = "PROMPT_SELECTION"
	PhaseWriting         Phase = "WRITING"
	PhaseReveal          Phase = "REVEAL"
	PhaseVoting          Phase = "VOTING"
	PhaseResults         Phase = "RESULTS"
	PhasePodium          Phase = "PODIUM"
	PhaseIntermission    Phase = "INTERMISSION"
	PhaseEnded           Phase = "ENDED"
)

// AllPhases lists every phase in lifecycle order.
var AllPhases = []Phase{
	PhaseLobby,
	PhasePromptSelection,
	PhaseWriting,
	PhaseReveal,
	PhaseVoting,
	PhaseResults,
	PhasePodium,
	PhaseIntermission,
	PhaseEnded,
}

// Scene is what the beamer shows for a given phase.
type Scene string

const (
	SceneLobby   Scene = "lobby"
	ScenePrompt  Scene = "prompt"
	SceneWriting Scene = "writing"
	SceneReveal  Scene = "reveal"
	SceneVoting  Scene = "voting"
	SceneResults Scene = "results"
	ScenePodium  Scene = "podium"
	SceneBreak   Scene = "break"
	SceneFinale  Scene = "finale"
)

var scenes = map[Phase]Scene{
	PhaseLobby:           SceneLobby,
	PhasePromptSelection: ScenePrompt,
	PhaseWriting:         SceneWriting,
	PhaseReveal:          SceneReveal,
	PhaseVoting:          SceneVoting,
	PhaseResults:         SceneResults,
	PhasePodium:          ScenePodium,
	PhaseIntermission:    SceneBreak,
	PhaseEnded:           SceneFinale,
}

// SceneFor maps a phase to its beamer scene. Every phase has an entry;
// there is no fallback scene.
func SceneFor(p Phase) Scene {
	return scenes[p]
}

// transitions holds the legal host-requested edges. Guards on top of these
// edges (round exists, prompt selected, AI answer present) are checked in
// Transition. Reset is not an edge, it is a separate privileged action.
var transitions = map[Phase][]Phase{
	PhaseLobby:           {PhasePromptSelection},
	PhasePromptSelection: {PhaseWriting},
	PhaseWriting:         {PhaseReveal, PhaseIntermission},
	PhaseReveal:          {PhaseVoting},
	PhaseVoting:          {PhaseResults},
	PhaseResults:         {PhasePodium, PhaseIntermission, PhaseLobby},
	PhasePodium:          {PhaseIntermission, PhaseLobby, PhaseEnded},
	PhaseIntermission:    {PhaseLobby},
	PhaseEnded:           {},
}

func (p Phase) canTransitionTo(next Phase) bool {
	for _, t := range transitions[p] {
		if t == next {
			return true
		}
	}
	return false
}

func (p Phase) valid() bool {
	_, ok := scenes[p]
	return ok
}

// answersPublic reports whether the full anonymized answer list may be
// shown to non-host roles. During REVEAL only the revealed prefix is
// public.
func (p Phase) answersPublic() bool {
	switch p {
	case PhaseVoting, PhaseResults, PhasePodium, PhaseEnded:
		return true
	}
	return false
}
