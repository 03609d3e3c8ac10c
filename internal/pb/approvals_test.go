package pb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestServiceDesc_NoProtoFileMetadata(t *testing.T) {
	assert.Equal(t, ServiceName, ServiceDesc.ServiceName)
	assert.Nil(t, ServiceDesc.Metadata)

	s := grpc.NewServer()
	defer s.Stop()
	s.RegisterService(&ServiceDesc, nil)

	info, ok := s.GetServiceInfo()[ServiceName]
	require.True(t, ok)
	assert.Nil(t, info.Metadata)

	names := []string{}
	for _, m := range info.Methods {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{
		MethodCreateRequest, MethodRecordDecision, MethodFreeze,
		MethodTransfer, MethodGetRequest, MethodSummarize,
	}, names)
}

func TestFullMethod(t *testing.T) {
	assert.Equal(t, "/hr.approvals.v1.ApprovalService/Freeze", FullMethod(MethodFreeze))
}
