package keyboard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solmate-labs/solmate-bot/internal/bot/keyboard"
)

func TestInlineKeyboardBuilder(t *testing.T) {
	builder := keyboard.NewInlineKeyboard()
	builder.AddRow(
		keyboard.InlineButton{Text: "Prev", Unique: "nav", Data: "1"},
		keyboard.InlineButton{Text: "Next", Unique: "nav", Data: "2"},
	).AddRow(
		keyboard.InlineButton{Text: "Confirm", Unique: "confirm"},
	)

	markup := builder.Build(func(unique, data string) string {
		payload, err := keyboard.EncodeCallback(unique, data)
		require.NoError(t, err)
		return payload
	})

	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	require.Len(t, markup.InlineKeyboard[0], 2)
	require.Len(t, markup.InlineKeyboard[1], 1)
	assert.Equal(t, "nav:2", markup.InlineKeyboard[0][1].Data)
	assert.Equal(t, "confirm", markup.InlineKeyboard[1][0].Data)
}

func TestInlineKeyboardBuilder_NilEncoder(t *testing.T) {
	markup := keyboard.NewInlineKeyboard().
		AddRow(keyboard.InlineButton{Text: "Back", Unique: "menu_main"}).
		Build(nil)

	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "menu_main", markup.InlineKeyboard[0][0].Data)
}

func TestInlineKeyboardBuilder_EmptyRowIgnored(t *testing.T) {
	markup := keyboard.NewInlineKeyboard().
		AddRow().
		AddRow(keyboard.InlineButton{Text: "X", Unique: "x"}).
		Build(nil)

	assert.Len(t, markup.InlineKeyboard, 1)
}
