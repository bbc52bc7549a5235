package bridge

import "fmt"

type Action string

const (
	ActionConnect     Action = "connect"
	ActionSwitchChain Action = "switch_chain"
	ActionApprove     Action = "approve"
	ActionBridge      Action = "bridge"
)

// Conditions are the inputs of the proceed button.
type Conditions struct {
	Connected     bool
	OnSourceChain bool
	NeedsApproval bool
	Busy          bool
}

// Labels names the asset and the source chain on the button.
type Labels struct {
	AssetSymbol string
	SourceChain string
}

var DefaultLabels = Labels{
	AssetSymbol: "CCIP-BnM",
	SourceChain: "Base",
}

type Decision struct {
	Action Action
	Label  string
}

// DecideAction picks the next required action. The first matching condition wins.
func DecideAction(c Conditions, labels Labels) Decision {
	switch {
	case !c.Connected:
		return Decision{ActionConnect, "Connect Wallet"}
	case !c.OnSourceChain:
		return Decision{ActionSwitchChain, fmt.Sprintf("Switch to %s", labels.SourceChain)}
	case c.NeedsApproval:
		return Decision{ActionApprove, fmt.Sprintf("Approve %s", labels.AssetSymbol)}
	case c.Busy:
		return Decision{ActionBridge, "Routing via CCIP..."}
	default:
		return Decision{ActionBridge, fmt.Sprintf("Bridge %s and Zap to Earn", labels.AssetSymbol)}
	}
}
