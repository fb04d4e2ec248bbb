package canlink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilters(t *testing.T) {
	std := MustFrame(0x123, []byte{1, 2, 3})
	ext := MustFrame(0x18FF50E5, []byte{1})
	rtr := Frame{Header: Header{ID: 0x123, RTR: true}}
	errf := Frame{Header: Header{ID: 0x4, Error: true}, Len: 8}

	require.True(t, ByID(0x123)(std))
	require.False(t, ByID(0x124)(std))

	ids := ByIDs(0x1, 0x123)
	require.True(t, ids(std))
	require.False(t, ids(ext))

	require.True(t, ByHeader(Header{ID: 0x123})(std))
	require.False(t, ByHeader(Header{ID: 0x123})(rtr))
	require.True(t, ByHeader(rtr.Header)(rtr))

	require.True(t, ByRange(0x100, 0x1FF)(std))
	require.True(t, ByRange(0x1FF, 0x100)(std))
	require.False(t, ByRange(0x200, 0x2FF)(std))

	require.True(t, ByMask(0x18FF0000, 0x1FFF0000)(ext))
	require.False(t, ByMask(0x18FE0000, 0x1FFF0000)(ext))

	require.True(t, StandardOnly()(std))
	require.False(t, StandardOnly()(ext))
	require.True(t, ExtendedOnly()(ext))

	require.True(t, DataOnly()(std))
	require.False(t, DataOnly()(rtr))
	require.False(t, DataOnly()(errf))
	require.True(t, RTROnly()(rtr))
	require.True(t, ErrorOnly()(errf))
	require.False(t, ErrorOnly()(std))

	require.True(t, LenAtMost(3)(std))
	require.False(t, LenAtMost(2)(std))
}

func TestFilterCombinators(t *testing.T) {
	std := MustFrame(0x123, nil)
	ext := MustFrame(0x12345, nil)

	require.True(t, And(ByID(0x123), StandardOnly())(std))
	require.False(t, And(ByID(0x123), ExtendedOnly())(std))
	require.True(t, And(nil, StandardOnly())(std))
	require.Nil(t, And(nil, nil))

	either := Or(ByID(0x123), ExtendedOnly())
	require.True(t, either(std))
	require.True(t, either(ext))
	require.False(t, either(MustFrame(0x7, nil)))
	require.True(t, Or(ByID(0x123), nil)(std))

	require.False(t, Not(ByID(0x123))(std))
	require.True(t, Not(ByID(0x123))(ext))
	require.False(t, Not(nil)(std))
}
