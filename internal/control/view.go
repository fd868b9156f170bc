package control

import (
	"strings"

	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/models"
)

// Project derives the control screen from a status. It is a pure function:
// the same status always yields the same view. A nil status yields the zero
// view with Known unset.
func Project(status *models.ServerStatus) models.ControlView {
	if status == nil {
		return models.ControlView{}
	}

	view := models.ControlView{
		Known:         true,
		Status:        status.Status,
		Uptime:        status.Uptime,
		UploadTooltip: strings.Join(status.AllowedFilenames, " "),
	}
	if status.IsRunning() {
		view.PowerOn = true
		view.PowerTooltip = constants.TooltipStopServer
		view.UploadEnabled = false
	} else {
		view.PowerOn = false
		view.PowerTooltip = constants.TooltipStartServer
		view.UploadEnabled = true
	}
	return view
}
