package canbus

import (
	"context"
	"fmt"
)

func ExampleLoopbackBus() {
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	_ = a.Send(ctx, MustFrame(0x1F6, []byte{0x80, 0x00, 0x03, 0x16}))
	f, _ := b.Receive(ctx)
	fmt.Println(f)
	// Output: 1F6 [4] 80 00 03 16
}
