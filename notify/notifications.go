package notify

import (
	"encoding/json"
	"net/http"
	"os"

	"officeflow/common"
	"officeflow/domain"
	"officeflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

// ADMIN_WEBHOOK_URL receives JSON notifications for events which need human
// attention. Delivery failures are logged and never retried by the engine.
var (
	ResolutionBlockedFunc = ResolutionBlocked
	InstanceFinishedFunc  = InstanceFinished
)

type Notification struct {
	Kind       string   `json:"kind"`
	InstanceID types.ID `json:"instanceId"`
	Title      string   `json:"title,omitempty"`
	Status     string   `json:"status,omitempty"`
	Operator   types.ID `json:"operator,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}

// ResolutionBlocked reports an instance whose next approver could not be
// resolved. The instance stays in its prior consistent state until an
// administrator intervenes.
func ResolutionBlocked(instanceId types.ID, s *session.Session) {
	deliver(Notification{
		Kind:       "no_eligible_approver",
		InstanceID: instanceId,
		Operator:   s.Identity.ID,
		Detail:     "approver resolution failed, instance is blocked",
	})
}

func InstanceFinished(record *domain.WorkflowInstance, s *session.Session) {
	deliver(Notification{
		Kind:       "instance_finished",
		InstanceID: record.ID,
		Title:      record.Title,
		Status:     string(record.Status),
		Operator:   s.Identity.ID,
	})
}

func deliver(n Notification) {
	url := os.Getenv("ADMIN_WEBHOOK_URL")
	if url == "" {
		logrus.Infof("admin webhook not configured, notification dropped: %s instance %d", n.Kind, n.InstanceID)
		return
	}
	body, err := json.Marshal(&n)
	if err != nil {
		logrus.Warnf("failed to marshal notification: %v", err)
		return
	}
	if _, err := common.HttpInvokeJson(http.MethodPost, url, nil, string(body)); err != nil {
		logrus.Warnf("failed to deliver notification %s for instance %d: %v", n.Kind, n.InstanceID, err)
	}
}
