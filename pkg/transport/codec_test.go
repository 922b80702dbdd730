package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dagpilot/pkg/vehicle"
)

func testFrame(t *testing.T) *vehicle.Frame {
	t.Helper()
	pix := make([]byte, 4*2*3)
	for i := range pix {
		pix[i] = byte(i)
	}
	f, err := vehicle.NewFrame(4, 2, pix)
	require.NoError(t, err)
	return f
}

func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec(vehicle.DefaultMapping())

	t.Run("Plain", func(t *testing.T) {
		in := Message{
			Frame:     testFrame(t),
			Telemetry: vehicle.Telemetry{Gear: 2, Steering: 0.1, Throttle: 0.7, Extra: map[string]float64{"speed": 12}},
		}
		parts, err := c.Encode(in)
		require.NoError(t, err)
		require.Len(t, parts, 3)
		assert.JSONEq(t, `{"dtype":"uint8","shape":[2,4,3]}`, string(parts[0]))

		out, err := c.Decode(parts)
		require.NoError(t, err)
		assert.Nil(t, out.Expert)
		assert.Equal(t, in.Telemetry, out.Telemetry)
		assert.Equal(t, in.Frame.Pix, out.Frame.Pix)
	})

	t.Run("Dagger", func(t *testing.T) {
		expert := vehicle.ExpertAction{Gear: 2, DSteering: -0.05}
		in := Message{Frame: testFrame(t), Telemetry: vehicle.Telemetry{Gear: 2}, Expert: &expert}
		parts, err := c.Encode(in)
		require.NoError(t, err)
		assert.Equal(t, byte('['), parts[2][0])

		out, err := c.Decode(parts)
		require.NoError(t, err)
		require.NotNil(t, out.Expert)
		assert.Equal(t, expert, *out.Expert)
	})
}

func TestDecodeRGBA(t *testing.T) {
	c := NewCodec(vehicle.DefaultMapping())
	parts := [][]byte{
		[]byte(`{"dtype":"uint8","shape":[1,2,4]}`),
		{1, 2, 3, 255, 4, 5, 6, 255},
		[]byte(`{"g":1,"sa":0,"t":0,"b":0}`),
	}
	msg, err := c.Decode(parts)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, msg.Frame.Pix)
}

func TestDecodeMalformed(t *testing.T) {
	c := NewCodec(vehicle.DefaultMapping())
	header := []byte(`{"dtype":"uint8","shape":[1,1,3]}`)
	pix := []byte{0, 0, 0}
	telemetry := []byte(`{"g":1,"sa":0,"t":0,"b":0}`)

	cases := map[string][][]byte{
		"TooFewParts":   {header, pix},
		"BadHeader":     {[]byte(`{`), pix, telemetry},
		"BadDType":      {[]byte(`{"dtype":"float32","shape":[1,1,3]}`), pix, telemetry},
		"ShortPixels":   {header, {0}, telemetry},
		"BadChannels":   {[]byte(`{"dtype":"uint8","shape":[1,1,2]}`), {0, 0}, telemetry},
		"EmptyData":     {header, pix, {}},
		"BadPair":       {header, pix, []byte(`[{"g":1,"sa":0,"t":0,"b":0}]`)},
		"MissingField":  {header, pix, []byte(`{"g":1}`)},
		"BadExpert":     {header, pix, []byte(`[{"g":1,"sa":0,"t":0,"b":0},{"g":1}]`)},
		"NotJSONObject": {header, pix, []byte(`42`)},
	}
	for name, parts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(parts)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestCommandCodec(t *testing.T) {
	cmd := vehicle.ControlCommand{Gear: 1, Steering: 0.2, Differential: true}
	data, err := EncodeCommand(cmd)
	require.NoError(t, err)

	back, err := DecodeCommand(data)
	require.NoError(t, err)
	assert.Equal(t, cmd, back)

	_, err = DecodeCommand([]byte("nope"))
	assert.ErrorIs(t, err, ErrMalformed)
}
