package adaptive

import "testing"

func TestDefaultFPSConfig(t *testing.T) {
	c := DefaultFPSConfig()
	if !c.Enabled || c.MinFPS != 5 || c.MaxFPS != 30 {
		t.Fatalf("unexpected default config: %+v", c)
	}
}

func TestActivityLevelOrdering(t *testing.T) {
	if !(ActivityStatic < ActivityLow && ActivityLow < ActivityMedium && ActivityMedium < ActivityHigh) {
		t.Fatalf("expected Static < Low < Medium < High")
	}
}

func TestController_HighActivityFullFPS(t *testing.T) {
	c := NewController(DefaultFPSConfig())
	for i := 0; i < 10; i++ {
		c.Update(0.5)
	}
	if c.ActivityLevel() != ActivityHigh {
		t.Fatalf("expected High activity, got %v", c.ActivityLevel())
	}
	if c.CurrentFPS() != 30 {
		t.Fatalf("expected 30 FPS, got %d", c.CurrentFPS())
	}
}

func TestController_StaticScreenMinFPS(t *testing.T) {
	c := NewController(DefaultFPSConfig())
	for i := 0; i < 50; i++ {
		c.Update(0.0)
	}
	if c.ActivityLevel() != ActivityStatic {
		t.Fatalf("expected Static activity, got %v", c.ActivityLevel())
	}
	if c.CurrentFPS() != 5 {
		t.Fatalf("expected 5 FPS, got %d", c.CurrentFPS())
	}
}

func TestController_Disabled(t *testing.T) {
	cfg := DefaultFPSConfig()
	cfg.Enabled = false
	c := NewController(cfg)
	c.Update(0.0)
	if c.CurrentFPS() != 30 {
		t.Fatalf("expected disabled controller to stay at max FPS, got %d", c.CurrentFPS())
	}
}

func TestController_RampUpSpeed(t *testing.T) {
	cfg := DefaultFPSConfig()
	cfg.RampUpFrames = 2
	c := NewController(cfg)

	for i := 0; i < 20; i++ {
		c.Update(0.0)
	}
	if c.ActivityLevel() != ActivityStatic {
		t.Fatalf("expected Static after prolonged idle, got %v", c.ActivityLevel())
	}

	c.Update(0.5)
	c.Update(0.5)
	c.Update(0.5)
	if c.ActivityLevel() < ActivityLow {
		t.Fatalf("expected at least Low after 3 high-activity frames, got %v", c.ActivityLevel())
	}
}

func TestController_SetEnabled_PinsMaxFPS(t *testing.T) {
	c := NewController(DefaultFPSConfig())
	c.Update(0.0)
	c.SetEnabled(false)
	if c.CurrentFPS() != c.config.MaxFPS {
		t.Fatalf("expected disabling to pin FPS to MaxFPS")
	}
}
