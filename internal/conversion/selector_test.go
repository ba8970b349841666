package conversion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUnitSelector(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected []int
	}{
		{"range", "0-2", []int{0, 1, 2}},
		{"list", "1,3,5", []int{1, 3, 5}},
		{"list with spaces", " 4, 2 ,7 ", []int{4, 2, 7}},
		{"single index", "3", []int{3}},
		{"single element range", "5-5", []int{5}},
		{"empty means all", "", nil},
		{"whitespace means all", "   ", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseUnitSelector(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.expected, got)
		})
	}
}

func TestParseUnitSelectorRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"a,b", "0-", "-1", "3-1", "0-2,5", "1-2-3", "1,,2"} {
		_, err := ParseUnitSelector(input)
		require.Error(t, err, input)
		require.Equal(t, KindInvalidArgument, KindOf(err), input)
	}
}

func TestParseUnitSelectorBoundsRanges(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"0-9223372036854775807",
		"0-2000000000",
		"5-65541",
	} {
		got, err := ParseUnitSelector(input)
		require.Error(t, err, input)
		require.Nil(t, got, input)
		require.Equal(t, KindInvalidArgument, KindOf(err), input)
	}

	_, err := ParseUnitSelector("0-9223372036854775808")
	require.Equal(t, KindInvalidArgument, KindOf(err))

	got, err := ParseUnitSelector("10-65545")
	require.NoError(t, err)
	require.Len(t, got, MaxRangeUnits)
	require.Equal(t, 65545, got[len(got)-1])
}

func TestResolveUnits(t *testing.T) {
	t.Parallel()

	all, err := ResolveUnits(nil, 4)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, all)

	picked, err := ResolveUnits([]int{1, 3}, 4)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, picked)

	_, err = ResolveUnits([]int{4}, 4)
	require.Error(t, err)
	require.Equal(t, KindInvalidArgument, KindOf(err))

	none, err := ResolveUnits(nil, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestDefaultOutputPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/data/report.docx", DefaultOutputPath("/data/report.pdf"))
	require.Equal(t, "/data/archive.v2.docx", DefaultOutputPath("/data/archive.v2.pdf"))
	require.Equal(t, "notes.docx", DefaultOutputPath("notes"))
}

func TestSizeMB(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 1.0, SizeMB(1024*1024), 1e-9)
	require.InDelta(t, 0.5, SizeMB(512*1024), 1e-9)
	require.InDelta(t, 0.0, SizeMB(100), 1e-9)
	require.InDelta(t, 2.35, Round2(2.3456), 1e-9)
}
