package attachment

import (
	"io"
	"io/ioutil"

	"officeflow/bizerror"
	"officeflow/client/oss"
	"officeflow/domain/instance"
	"officeflow/session"

	aliyun "github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/fundwit/go-commons/types"
)

const signExpireSeconds = 600

// DetailAttachment streams the stored object. Visibility follows the
// owning instance: whoever may view the instance may read its attachments.
func DetailAttachment(instanceId types.ID, name string, s *session.Session) ([]byte, error) {
	if _, err := instance.DetailInstanceFunc(instanceId, s); err != nil {
		return nil, err
	}

	r, err := oss.GetObjectFunc(objectKey(instanceId, name), s)
	if err != nil {
		if serErr, ok := err.(aliyun.ServiceError); ok && serErr.Code == "NoSuchKey" {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	return ioutil.ReadAll(r)
}

func CreateAttachment(instanceId types.ID, name string, r io.Reader, s *session.Session) error {
	detail, err := instance.DetailInstanceFunc(instanceId, s)
	if err != nil {
		return err
	}
	if detail.InitiatorID != s.Identity.ID && !s.Perms.HasAdminRole() {
		return bizerror.ErrForbidden
	}

	return oss.PutObjectFunc(objectKey(instanceId, name), r, s)
}

// SignAttachment returns a pre-signed download URL valid for a short period.
func SignAttachment(instanceId types.ID, name string, s *session.Session) (string, error) {
	if _, err := instance.DetailInstanceFunc(instanceId, s); err != nil {
		return "", err
	}
	return oss.SignObjectFunc(objectKey(instanceId, name), signExpireSeconds, s)
}

func objectKey(instanceId types.ID, name string) string {
	return "attachments/" + instanceId.String() + "/" + name
}
