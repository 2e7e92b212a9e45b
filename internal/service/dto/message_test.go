package dto_test

import (
	"testing"

	"mafia-host-be/internal/service/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelInitAllowsEmptyPayload(t *testing.T) {
	wrapper, err := dto.DecodeRequest([]byte(`{"request_type":"PanelInit"}`))
	require.NoError(t, err)

	req := dto.TryUnwrapPanelInitRequest(wrapper)
	require.NotNil(t, req)
	assert.Empty(t, req.Code)
}

func TestPanelInitCarriesReclaimCode(t *testing.T) {
	wrapper, err := dto.DecodeRequest(
		[]byte(`{"request_type":"PanelInit","data":{"code":"4821"}}`),
	)
	require.NoError(t, err)

	req := dto.TryUnwrapPanelInitRequest(wrapper)
	require.NotNil(t, req)
	assert.Equal(t, "4821", req.Code)
}

func TestUnwrapRejectsMismatchedType(t *testing.T) {
	wrapper, err := dto.DecodeRequest(
		[]byte(`{"request_type":"OverlayJoin","data":{"code":"4821"}}`),
	)
	require.NoError(t, err)

	assert.Nil(t, dto.TryUnwrapPanelInitRequest(wrapper))
	assert.Nil(t, dto.TryUnwrapAvatarChangeRequest(wrapper))

	req := dto.TryUnwrapOverlayJoinRequest(wrapper)
	require.NotNil(t, req)
	assert.Equal(t, "4821", req.Code)
}

func TestStateUpdateAcceptsBothModes(t *testing.T) {
	for _, reqType := range []string{dto.REQ_STATE_UPDATE, dto.REQ_STATE_FULL} {
		wrapper, err := dto.DecodeRequest(
			[]byte(`{"request_type":"` + reqType + `","data":{"gamePhase":"day"}}`),
		)
		require.NoError(t, err)

		update := dto.TryUnwrapStateUpdateRequest(wrapper)
		require.NotNil(t, update, "type %s must unwrap", reqType)
		assert.JSONEq(t, `"day"`, string(update.Fields["gamePhase"]))
	}
}

func TestUnwrapMalformedPayloadReturnsNil(t *testing.T) {
	wrapper, err := dto.DecodeRequest(
		[]byte(`{"request_type":"AvatarChange","data":"not-an-object"}`),
	)
	require.NoError(t, err)

	assert.Nil(t, dto.TryUnwrapAvatarChangeRequest(wrapper))
}
