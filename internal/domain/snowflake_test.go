package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake_Time(t *testing.T) {
	// Идентификатор из документации удаленного сервиса.
	id := Snowflake(175928847299117063)
	require.Equal(t, time.Date(2016, 4, 30, 11, 18, 25, 796000000, time.UTC), id.Time())
}

func TestSnowflakeFromTime_RoundTrip(t *testing.T) {
	ts := time.Date(2023, 2, 12, 13, 36, 0, 0, time.UTC)
	id := SnowflakeFromTime(ts)

	require.Equal(t, ts, id.Time())
	require.True(t, SnowflakeFromTime(ts.Add(time.Millisecond)) > id)
}

func TestSnowflakeFromTime_BeforeEpoch(t *testing.T) {
	require.Equal(t, ZeroSnowflake, SnowflakeFromTime(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseSnowflake(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Snowflake
		wantErr bool
	}{
		{name: "число", input: "1074323136411078787", want: 1074323136411078787},
		{name: "число с пробелами", input: "  42 ", want: 42},
		{name: "дата", input: "2023-02-12", want: SnowflakeFromTime(time.Date(2023, 2, 12, 0, 0, 0, 0, time.UTC))},
		{name: "дата и время", input: "2023-02-12T13:36:00Z", want: SnowflakeFromTime(time.Date(2023, 2, 12, 13, 36, 0, 0, time.UTC))},
		{name: "пустая строка", input: "", wantErr: true},
		{name: "мусор", input: "not-an-id", wantErr: true},
		{name: "отрицательное", input: "-5", wantErr: true},
		{name: "наибольшее", input: "9223372036854775807", want: Snowflake(1<<63 - 1)},
		{name: "вне диапазона", input: "9223372036854775808", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSnowflake(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnowflake_JSON(t *testing.T) {
	var payload struct {
		ID       Snowflake `json:"id"`
		ParentID Snowflake `json:"parent_id"`
		Empty    Snowflake `json:"empty"`
		Number   Snowflake `json:"number"`
	}

	err := json.Unmarshal([]byte(`{"id":"123","parent_id":null,"empty":"","number":77}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, Snowflake(123), payload.ID)
	assert.True(t, payload.ParentID.IsZero())
	assert.True(t, payload.Empty.IsZero())
	assert.Equal(t, Snowflake(77), payload.Number)

	out, err := json.Marshal(Snowflake(123))
	require.NoError(t, err)
	assert.Equal(t, `"123"`, string(out))

	require.Error(t, json.Unmarshal([]byte(`{"id":"abc"}`), &payload))
}

func TestSnowflake_JSONAndStringAgree(t *testing.T) {
	inputs := []string{"0", "42", "-5", "abc", "9223372036854775807", "9223372036854775808", "18446744073709551615"}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			fromString, errString := parseID(input)

			var fromQuoted, fromNumber Snowflake
			errQuoted := json.Unmarshal([]byte(`"`+input+`"`), &fromQuoted)
			errNumber := json.Unmarshal([]byte(input), &fromNumber)

			assert.Equal(t, errString == nil, errQuoted == nil)
			if input != "abc" {
				assert.Equal(t, errString == nil, errNumber == nil)
			}
			if errString == nil {
				assert.Equal(t, fromString, fromQuoted)
				assert.Equal(t, fromString, fromNumber)
			}
		})
	}
}

func TestSnowflake_UsesServiceEpoch(t *testing.T) {
	assert.Equal(t, discordEpoch, snowflake.Epoch)
	assert.Equal(t, time.UnixMilli(discordEpoch).UTC(), SnowflakeFromTime(time.UnixMilli(discordEpoch)).Time())
	assert.Equal(t, Snowflake(1<<22), SnowflakeFromTime(time.UnixMilli(discordEpoch+1)))
}
