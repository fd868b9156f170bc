package control

import (
	"testing"

	"github.com/retribution/retctl/internal/models"
)

func TestProject(t *testing.T) {
	names := []string{"retribution_nextturn.miz", "liberation_nextturn.miz"}

	tests := []struct {
		name   string
		status *models.ServerStatus
		want   models.ControlView
	}{
		{
			name:   "nil status",
			status: nil,
			want:   models.ControlView{},
		},
		{
			name:   "running",
			status: &models.ServerStatus{Status: "running", Uptime: "0:10:00", AllowedFilenames: names, AllowedMaxSizeMB: 500},
			want: models.ControlView{
				Known:         true,
				Status:        "running",
				Uptime:        "0:10:00",
				PowerOn:       true,
				PowerTooltip:  "Stop Server",
				UploadEnabled: false,
				UploadTooltip: "retribution_nextturn.miz liberation_nextturn.miz",
			},
		},
		{
			name:   "stopped",
			status: &models.ServerStatus{Status: "stopped", Uptime: "N/A", AllowedFilenames: names[:1], AllowedMaxSizeMB: 500},
			want: models.ControlView{
				Known:         true,
				Status:        "stopped",
				Uptime:        "N/A",
				PowerOn:       false,
				PowerTooltip:  "Start Server",
				UploadEnabled: true,
				UploadTooltip: "retribution_nextturn.miz",
			},
		},
		{
			name:   "unknown status value treated as stopped",
			status: &models.ServerStatus{Status: "starting"},
			want: models.ControlView{
				Known:         true,
				Status:        "starting",
				PowerTooltip:  "Start Server",
				UploadEnabled: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Project(tt.status); got != tt.want {
				t.Errorf("Project() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	status := &models.ServerStatus{Status: "running", AllowedFilenames: []string{"a.miz", "b.miz"}}
	first := Project(status)
	for i := 0; i < 3; i++ {
		if got := Project(status); got != first {
			t.Fatalf("projection %d = %+v, want %+v", i, got, first)
		}
	}
}
