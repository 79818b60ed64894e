package service

import "edu_progress_backend/internal/model"

// AllExercisesDone 课时所有完成项都已记录；没有练习时恒为真
func AllExercisesDone(p *model.LessonProgress, lesson *model.Lesson) bool {
	done, total := completedItemCount(p, lesson)
	return done == total
}

// ExerciseDone 单个练习的最后一题已作答
func ExerciseDone(p *model.LessonProgress, ex *model.Exercise) bool {
	set := p.CompletedSet()
	for _, id := range ex.ExerciseItems() {
		if !set[id] {
			return false
		}
	}
	return true
}

// ContentUnlocked 正文是否可见。视频本身从不受限，这里只管正文。
// 已完成的课时不会重新上锁。
func ContentUnlocked(p *model.LessonProgress, lesson *model.Lesson) bool {
	if p != nil && p.Completed {
		return true
	}
	if Classify(lesson) != VariantPractice && !lesson.HasExercises() {
		return true
	}
	return AllExercisesDone(p, lesson)
}

// CompletionAllowed 能否进入已完成状态：视频课时还需达到观看阈值
func CompletionAllowed(p *model.LessonProgress, lesson *model.Lesson) bool {
	if p != nil && p.Completed {
		return true
	}
	if Classify(lesson) == VariantVideo {
		return p != nil && p.VideoWatched && AllExercisesDone(p, lesson)
	}
	return ContentUnlocked(p, lesson)
}

// intrinsicCompletion 状态机自身能推导出的完成；
// 没有完成项的图文/练习课时只能由外部显式标记
func intrinsicCompletion(p *model.LessonProgress, lesson *model.Lesson) bool {
	if Classify(lesson) == VariantVideo {
		return p.VideoWatched && AllExercisesDone(p, lesson)
	}
	if len(lesson.Items()) == 0 {
		return false
	}
	return AllExercisesDone(p, lesson)
}

// GateState 接口返回的门控快照，每次都从当前进度重新计算
type GateState struct {
	ContentUnlocked   bool `json:"content_unlocked"`
	CompletionAllowed bool `json:"completion_allowed"`
	VideoPlayable     bool `json:"video_playable"`
}

func EvaluateGate(p *model.LessonProgress, lesson *model.Lesson) GateState {
	return GateState{
		ContentUnlocked:   ContentUnlocked(p, lesson),
		CompletionAllowed: CompletionAllowed(p, lesson),
		VideoPlayable:     Classify(lesson) == VariantVideo,
	}
}
